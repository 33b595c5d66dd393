// Package ingest turns an inbound file reference into text usable as a
// prompt fragment, under hard resource bounds. Each stage is a gate:
// failure short-circuits with a typed result surfaced verbatim to the
// caller, never a fallback chain (the image vision→OCR step is the one
// designed exception).
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/entrepeneur4lyf/chatforge/internal/ingest/extract"
	"github.com/entrepeneur4lyf/chatforge/internal/workers"
)

// FileKind is the media kind resolved once at ingress from the transport's
// structural attributes.
type FileKind int

const (
	KindDocument FileKind = iota
	KindPhoto
	KindVoice
	KindVideo
	KindAudio
)

func (k FileKind) String() string {
	switch k {
	case KindDocument:
		return "document"
	case KindPhoto:
		return "photo"
	case KindVoice:
		return "voice"
	case KindVideo:
		return "video"
	case KindAudio:
		return "audio"
	default:
		return "unknown"
	}
}

// State tracks a single ingestion request through the pipeline. Failed is
// terminal; no state is retried.
type State string

const (
	StateReceived       State = "received"
	StateSizeChecked    State = "size_checked"
	StateDownloaded     State = "downloaded"
	StateDispatched     State = "dispatched"
	StateExtractedOK    State = "extracted_ok"
	StateExtractedWarn  State = "extracted_with_warnings"
	StateUnsupported    State = "unsupported"
	StateFailed         State = "failed"
	StatePromptComposed State = "prompt_composed"
)

// FileRef is an inbound file reference: the transport's opaque id already
// resolved to a temporary download URL, plus the declared metadata the
// gates need before any transfer happens.
type FileRef struct {
	ID   string
	Kind FileKind
	Name string
	Size int64
	URL  string
}

// ResultKind tags the ingestion outcome.
type ResultKind int

const (
	// ResultText carries extracted document text.
	ResultText ResultKind = iota
	// ResultVision carries a vision-model narrative and the model used.
	ResultVision
	// ResultUnsupported names an input the pipeline does not handle.
	ResultUnsupported
	// ResultError is a terminal failure with a reason.
	ResultError
)

// Result is produced once per file and consumed exactly once by the
// caller. For ResultText and ResultVision the composed analysis prompt is
// ready in Prompt; for the other kinds Reason explains the outcome.
type Result struct {
	Kind      ResultKind
	State     State
	Text      string
	ModelUsed string
	Reason    string
	Prompt    string
	Warnings  bool
}

// VisionAnalyzer is the slice of the orchestrator the pipeline needs for
// the image path.
type VisionAnalyzer interface {
	RespondVision(ctx context.Context, userID int64, instruction, imageURL string) (string, string, error)
}

// visionInstruction is the default transcribe-and-describe prompt for
// image analysis.
const visionInstruction = "Describe this image in detail and extract all visible text. If it is a document or contains text, return the text verbatim."

// Options bounds the pipeline.
type Options struct {
	StagingDir       string
	MaxFileSize      int64
	MaxPDFPages      int
	MaxTextLength    int
	DownloadTimeout  time.Duration
	StagingRetention time.Duration
}

// Pipeline transforms file references into analysis prompts.
type Pipeline struct {
	opts   Options
	client *http.Client
	cache  *ExtractCache
	pool   *workers.Pool
	ocr    *extract.OCR
	vision VisionAnalyzer
	logger *log.Logger
}

// NewPipeline wires the pipeline. The staging directory is created if
// missing.
func NewPipeline(opts Options, cache *ExtractCache, pool *workers.Pool, ocr *extract.OCR, vision VisionAnalyzer, logger *log.Logger) (*Pipeline, error) {
	if err := os.MkdirAll(opts.StagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating staging directory: %w", err)
	}
	return &Pipeline{
		opts:   opts,
		client: &http.Client{Timeout: opts.DownloadTimeout},
		cache:  cache,
		pool:   pool,
		ocr:    ocr,
		vision: vision,
		logger: logger,
	}, nil
}

// Process runs one file through the pipeline and returns its result. Only
// the caller sends anything to the user; Process never talks to the
// transport.
func (p *Pipeline) Process(ctx context.Context, userID int64, ref FileRef) Result {
	// Size gate, before any transfer.
	if ref.Size > p.opts.MaxFileSize {
		return Result{
			Kind:  ResultError,
			State: StateFailed,
			Reason: fmt.Sprintf("file too large (%.1f MB); the limit is %d MB",
				float64(ref.Size)/(1024*1024), p.opts.MaxFileSize/(1024*1024)),
		}
	}

	stagingPath := filepath.Join(p.opts.StagingDir, uuid.NewString()+"_"+sanitizeName(ref.Name))
	if err := p.download(ctx, ref.URL, stagingPath); err != nil {
		p.logger.Error("file download failed", "file", ref.Name, "err", err)
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: fmt.Sprintf("failed to download the file: %v", err),
		}
	}

	result := p.dispatch(ctx, userID, ref, stagingPath)

	if result.Kind == ResultText || result.Kind == ResultVision {
		result.Prompt = ComposePrompt(ref, result.Text)
		result.State = StatePromptComposed
	}
	return result
}

// dispatch routes by the media kind resolved at ingress, then by extension
// for documents.
func (p *Pipeline) dispatch(ctx context.Context, userID int64, ref FileRef, stagingPath string) Result {
	switch ref.Kind {
	case KindPhoto:
		return p.processImage(ctx, userID, ref, stagingPath)
	case KindVoice, KindVideo, KindAudio:
		return Result{
			Kind:   ResultUnsupported,
			State:  StateUnsupported,
			Reason: fmt.Sprintf("media file %q (%s): transcription of audio and video is not supported", ref.Name, ref.Kind),
		}
	}

	switch strings.ToLower(filepath.Ext(ref.Name)) {
	case ".pdf":
		return p.processPDF(ctx, ref, stagingPath)
	case ".docx":
		return p.processDOCX(ctx, stagingPath)
	case ".txt":
		return p.processTXT(ctx, stagingPath)
	default:
		return Result{
			Kind:  ResultUnsupported,
			State: StateUnsupported,
			Reason: fmt.Sprintf("file format of %q is not supported; supported formats: PDF (.pdf), Word (.docx), plain text (.txt), and images",
				ref.Name),
		}
	}
}

// processImage tries the vision chain first and falls back to local OCR
// when every vision candidate fails and the capability is present.
func (p *Pipeline) processImage(ctx context.Context, userID int64, ref FileRef, stagingPath string) Result {
	analysis, model, err := p.vision.RespondVision(ctx, userID, visionInstruction, ref.URL)
	if err == nil {
		return Result{Kind: ResultVision, State: StateExtractedOK, Text: analysis, ModelUsed: model}
	}
	p.logger.Warn("vision analysis failed, falling back to OCR", "err", err)

	if !p.ocr.Available() {
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: "vision models are unavailable and no local OCR is installed; could not analyze the image",
		}
	}

	text, ocrErr := workers.Run(ctx, p.pool, func() (string, error) {
		return p.ocr.Image(ctx, stagingPath)
	})
	if ocrErr != nil {
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: fmt.Sprintf("vision models are unavailable and OCR failed: %v", ocrErr),
		}
	}

	return Result{
		Kind:     ResultText,
		State:    StateExtractedWarn,
		Text:     "OCR transcription (tesseract):\n\n" + text,
		Warnings: true,
	}
}

func (p *Pipeline) processPDF(ctx context.Context, ref FileRef, stagingPath string) Result {
	sig, sigErr := FileSignature(stagingPath)
	if sigErr == nil {
		if text, ok := p.cache.Get(sig); ok {
			p.logger.Debug("pdf extraction cache hit", "file", ref.Name)
			return Result{Kind: ResultText, State: StateExtractedOK, Text: text}
		}
	}

	res, err := workers.Run(ctx, p.pool, func() (extract.PDFResult, error) {
		return extract.PDF(stagingPath, p.opts.MaxPDFPages, p.opts.MaxTextLength, p.opts.MaxTextLength*3)
	})
	if err != nil {
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: fmt.Sprintf("failed to extract text from PDF: %v", err),
		}
	}

	if sigErr == nil {
		p.cache.Put(sig, res.Text)
	}

	state := StateExtractedOK
	warn := res.PageErrors > 0 || res.Truncated
	if warn {
		state = StateExtractedWarn
	}
	return Result{Kind: ResultText, State: state, Text: res.Text, Warnings: warn}
}

func (p *Pipeline) processDOCX(ctx context.Context, stagingPath string) Result {
	text, paragraphs, err := workers.Run2(ctx, p.pool, func() (string, int, error) {
		return extract.DOCX(stagingPath)
	})
	if err != nil {
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: fmt.Sprintf("failed to extract text from DOCX: %v", err),
		}
	}
	return Result{
		Kind:  ResultText,
		State: StateExtractedOK,
		Text:  fmt.Sprintf("DOCX document, %d paragraphs\n\n%s", paragraphs, text),
	}
}

func (p *Pipeline) processTXT(ctx context.Context, stagingPath string) Result {
	text, encodingName, err := workers.Run2(ctx, p.pool, func() (string, string, error) {
		return extract.Text(stagingPath)
	})
	if err != nil {
		if errors.Is(err, extract.ErrUnsupportedEncoding) {
			return Result{
				Kind:  ResultUnsupported,
				State: StateUnsupported,
				Reason: fmt.Sprintf("could not decode the text file; supported encodings: %s",
					strings.Join(extract.SupportedTextEncodings(), ", ")),
			}
		}
		return Result{
			Kind:   ResultError,
			State:  StateFailed,
			Reason: fmt.Sprintf("failed to read the text file: %v", err),
		}
	}

	lines := strings.Count(strings.TrimSpace(text), "\n") + 1
	return Result{
		Kind:  ResultText,
		State: StateExtractedOK,
		Text:  fmt.Sprintf("Text file (%s), %d lines\n\n%s", encodingName, lines, strings.TrimSpace(text)),
	}
}

// download streams the remote file to the staging path in fixed-size
// chunks. No retry: any transport error is terminal for the request.
func (p *Pipeline) download(ctx context.Context, url, path string) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("creating download request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("transfer failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transfer failed: HTTP %d", resp.StatusCode)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating staging file: %w", err)
	}
	defer f.Close()

	if _, err := io.CopyBuffer(f, resp.Body, make([]byte, 64*1024)); err != nil {
		os.Remove(path)
		return fmt.Errorf("writing staging file: %w", err)
	}
	return nil
}

// Purge removes staged files older than the retention window.
func (p *Pipeline) Purge() int {
	removed := PurgeStaging(p.opts.StagingDir, p.opts.StagingRetention)
	if removed > 0 {
		p.logger.Info("purged stale staged files", "count", removed)
	}
	return removed
}

// ComposePrompt wraps extracted text or a vision narrative into the
// structured analysis request handed to the orchestrator as the new user
// turn.
func ComposePrompt(ref FileRef, content string) string {
	return fmt.Sprintf(`The user sent a %s file named %q.
File contents:
%s

Analyze this file and answer with a short structured summary:
1. Document type and general information
2. Key data (dates, numbers, important facts)
3. Brief summary of the contents
4. Main conclusions or recommendations

Keep the answer brief but informative.`, ref.Kind, ref.Name, content)
}

// sanitizeName strips path separators from a transport-provided file name
// before it joins the staging path.
func sanitizeName(name string) string {
	name = filepath.Base(name)
	if name == "." || name == string(os.PathSeparator) || name == "" {
		return "file"
	}
	return name
}
