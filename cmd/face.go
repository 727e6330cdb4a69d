package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/disintegration/imaging"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/capture/opencv"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/vision"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var faceCmd = &cobra.Command{
	Use:   "face",
	Short: "Enroll and inspect reference faces",
}

var faceRegisterCmd = &cobra.Command{
	Use:   "register <code>",
	Short: "Enroll the reference face of a registered person",
	Long: `Open the camera preview and press 'c' to capture the face of the person with
the given code ('q' aborts). With --photo the face is taken from an image file instead.

The face is rejected when it is too close to a face already enrolled for someone else.
Enrolling again for the same code replaces the previous face.`,
	Args: cobra.ExactArgs(1),
	RunE: runFaceRegister,
}

var faceVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check stored embeddings against the configured model",
	Long: `Decode every stored embedding and report identities whose blob is corrupt or was
produced by a different model configuration. Such identities are skipped during
recognition until they are enrolled again.`,
	Args: cobra.NoArgs,
	RunE: runFaceVerify,
}

var faceNearestCmd = &cobra.Command{
	Use:   "nearest <code>",
	Short: "List the enrolled faces closest to a person's face",
	Long: `Rank the other enrolled identities by cosine distance to the face of <code>.
Useful for tuning RECOGNITION_THRESHOLD: neighbours under the threshold could be
confused with each other. Uses pgvector on PostgreSQL and an HNSW index otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: runFaceNearest,
}

func init() {
	rootCmd.AddCommand(faceCmd)
	faceCmd.AddCommand(faceRegisterCmd)
	faceCmd.AddCommand(faceVerifyCmd)
	faceCmd.AddCommand(faceNearestCmd)

	faceRegisterCmd.Flags().String("photo", "", "Enroll from an image file instead of the camera")

	faceVerifyCmd.Flags().Bool("json", false, "Output as JSON")

	faceNearestCmd.Flags().Int("limit", constants.DefaultNeighbourLimit, "Number of neighbours to show")
	faceNearestCmd.Flags().Bool("json", false, "Output as JSON")
}

func runFaceRegister(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	code := args[0]
	photoPath := mustGetString(cmd, "photo")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.identities.GetIdentityByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", code, err)
	}
	if identity == nil {
		return fmt.Errorf("%w: %s (add it with: person add %s <name>)", facematch.ErrIdentityNotFound, code, code)
	}

	analyzer, err := a.newAnalyzer()
	if err != nil {
		return err
	}
	if err := checkAnalyzer(ctx, analyzer); err != nil {
		return err
	}

	var embedding []float32
	if photoPath != "" {
		embedding, err = embedPhoto(ctx, analyzer, photoPath)
	} else {
		embedding, err = captureFromCamera(ctx, a, analyzer, identity)
	}
	if errors.Is(err, capture.ErrCaptureAborted) {
		fmt.Println("Enrollment aborted")
		return nil
	}
	if err != nil {
		return err
	}

	_, err = a.enroller(analyzer.ModelTag()).RegisterFace(ctx, code, embedding)
	var dup *facematch.DuplicateFaceError
	if errors.As(err, &dup) {
		fmt.Printf("Face already registered as %s (%s), distance %.3f\n", dup.Conflict.Name, dup.Conflict.Code, dup.Distance)
		return fmt.Errorf("face of %s not enrolled", code)
	}
	if err != nil {
		return fmt.Errorf("failed to enroll face: %w", err)
	}

	fmt.Printf("Face registered for %s (%s)\n", identity.Name, identity.Code)
	return nil
}

func embedPhoto(ctx context.Context, analyzer vision.Analyzer, path string) ([]float32, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open photo: %w", err)
	}
	embedding, err := vision.EmbedLargest(ctx, analyzer, img)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %s: %w", path, err)
	}
	return embedding, nil
}

func captureFromCamera(ctx context.Context, a *app, analyzer vision.Analyzer, identity *database.Identity) ([]float32, error) {
	cam, err := opencv.OpenCamera(a.cfg.Camera.Device)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", capture.ErrDeviceUnavailable, err)
	}
	defer cam.Close()

	win, err := opencv.OpenWindow("Enroll " + facematch.ASCIIName(identity.Name))
	if err != nil {
		return nil, err
	}
	defer win.Close()

	fmt.Printf("Enrolling %s (%s): %s, 'q' to abort\n", identity.Name, identity.Code, capture.EnrollPrompt)
	return capture.CaptureEnrollment(ctx, cam, win, analyzer)
}

// blobProblem describes an enrolled identity whose embedding cannot be used for recognition.
type blobProblem struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Model  string `json:"model,omitempty"`
	Reason string `json:"reason"`
}

// checkBlob returns the problem with identity's stored embedding, or nil when it decodes
// under modelTag. Identities without an embedding are not a problem.
func checkBlob(identity *database.Identity, modelTag string) *blobProblem {
	if !identity.Enrolled() {
		return nil
	}
	_, tag, err := database.DecodeEmbedding(identity.Embedding)
	switch {
	case err != nil:
		return &blobProblem{Code: identity.Code, Name: identity.Name, Reason: err.Error()}
	case tag != modelTag:
		return &blobProblem{Code: identity.Code, Name: identity.Name, Model: tag,
			Reason: fmt.Sprintf("model mismatch: stored %q, expected %q", tag, modelTag)}
	}
	return nil
}

func runFaceVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	jsonOutput := mustGetBool(cmd, "json")

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identities, err := a.identities.ListEnrolled(ctx)
	if err != nil {
		return fmt.Errorf("failed to list enrolled identities: %w", err)
	}
	modelTag := a.modelTag()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(identities),
			progressbar.OptionSetDescription("Verifying embeddings"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("faces"),
			progressbar.OptionFullWidth(),
		)
	}

	problems := make([]blobProblem, 0)
	for i := range identities {
		if p := checkBlob(&identities[i], modelTag); p != nil {
			problems = append(problems, *p)
		}
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	if jsonOutput {
		return outputJSON(problems)
	}

	fmt.Printf("\nChecked %d enrolled faces against %s\n", len(identities), modelTag)
	if len(problems) == 0 {
		fmt.Println("All embeddings are usable")
		return nil
	}
	fmt.Printf("%d faces are skipped during recognition and need to be enrolled again:\n", len(problems))
	for _, p := range problems {
		fmt.Printf("  %-12s %-32s %s\n", p.Code, p.Name, p.Reason)
	}
	return nil
}

func runFaceNearest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	code := args[0]
	limit := mustGetInt(cmd, "limit")
	jsonOutput := mustGetBool(cmd, "json")
	if limit < 1 {
		return errors.New("--limit must be at least 1")
	}

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	identity, err := a.identities.GetIdentityByCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to look up %s: %w", code, err)
	}
	if identity == nil {
		return fmt.Errorf("%w: %s", facematch.ErrIdentityNotFound, code)
	}
	if !identity.Enrolled() {
		return fmt.Errorf("%s has no enrolled face", code)
	}
	modelTag := a.modelTag()
	query, err := database.DecodeEmbeddingFor(identity.Embedding, modelTag)
	if err != nil {
		return fmt.Errorf("stored face of %s is unusable: %w", code, err)
	}

	neighbours, err := nearestIdentities(ctx, a, identity.ID, query, limit)
	if err != nil {
		return err
	}

	if jsonOutput {
		return outputJSON(neighbours)
	}

	threshold := a.matcher.RecognitionThreshold()
	fmt.Printf("Nearest faces to %s (%s), recognition threshold %.2f:\n", identity.Name, identity.Code, threshold)
	if len(neighbours) == 0 {
		fmt.Println("  no other enrolled faces")
		return nil
	}
	for _, n := range neighbours {
		marker := ""
		if n.Distance < threshold {
			marker = "  << within threshold"
		}
		fmt.Printf("  %-12s %-32s %.4f%s\n", n.Code, n.Name, n.Distance, marker)
	}
	return nil
}

// nearestIdentities ranks other enrolled identities server-side when the store supports it,
// otherwise through the HNSW index persisted at HNSW_INDEX_PATH.
func nearestIdentities(ctx context.Context, a *app, selfID int64, query []float32, limit int) ([]database.Neighbour, error) {
	if finder, ok := a.identities.(database.NeighbourFinder); ok {
		found, err := finder.NearestIdentities(ctx, query, a.modelTag(), limit+1)
		if err != nil {
			return nil, fmt.Errorf("neighbour search failed: %w", err)
		}
		neighbours := make([]database.Neighbour, 0, limit)
		for _, n := range found {
			if n.IdentityID != selfID && len(neighbours) < limit {
				neighbours = append(neighbours, n)
			}
		}
		return neighbours, nil
	}

	faces, err := a.store(a.modelTag()).LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	index := database.NewIdentityIndex(a.modelTag())
	path := a.cfg.Database.HNSWIndexPath
	loaded, err := index.Load(path, faces)
	if err != nil {
		fmt.Printf("Warning: ignoring saved HNSW index: %v\n", err)
	}
	if !loaded {
		index.Build(faces)
		if err := index.Save(path); err != nil {
			fmt.Printf("Warning: failed to save HNSW index: %v\n", err)
		}
	}
	return index.Nearest(query, limit, selfID)
}
