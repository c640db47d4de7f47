package ocr

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/config"
)

// PaddleRunner drives the PP-StructureV3 engine through a Python script.
// Each invocation gets its own output directory so concurrent runs never
// read each other's results.
type PaddleRunner struct {
	pythonPath string
	scriptPath string
	outputDir  string
	useGPU     bool
	gpuID      int
	timeout    time.Duration
}

// NewPaddleRunner creates a PaddleRunner from config.
func NewPaddleRunner(cfg config.OCRConfig) (*PaddleRunner, error) {
	if cfg.ScriptPath == "" {
		return nil, eris.New("ocr: script_path is required")
	}
	pythonPath := cfg.PythonPath
	if pythonPath == "" {
		pythonPath = "python3"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &PaddleRunner{
		pythonPath: pythonPath,
		scriptPath: cfg.ScriptPath,
		outputDir:  cfg.OutputDir,
		useGPU:     cfg.UseGPU,
		gpuID:      cfg.GPUID,
		timeout:    timeout,
	}, nil
}

// Process runs the engine on an image and loads the JSON files it produced.
func (r *PaddleRunner) Process(ctx context.Context, imagePath string) ([]Page, error) {
	if _, err := os.Stat(imagePath); err != nil {
		return nil, eris.Wrapf(err, "ocr: image %s", imagePath)
	}

	if r.outputDir != "" {
		if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "ocr: create output dir")
		}
	}
	outDir, err := os.MkdirTemp(r.outputDir, "run-")
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create output dir")
	}
	defer os.RemoveAll(outDir)

	args := []string{r.scriptPath, "--image", imagePath, "--output", outDir}
	if r.useGPU {
		args = append(args, "--gpu", "--gpu-id", strconv.Itoa(r.gpuID))
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.pythonPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return nil, eris.Wrapf(err, "ocr: engine failed for %s: %s", imagePath, stderr.String())
	}
	zap.L().Debug("ocr engine finished",
		zap.String("image", imagePath),
		zap.Duration("elapsed", time.Since(start)))

	return loadPages(outDir)
}

// loadPages walks the engine output directory and reads every JSON result
// file. The engine nests results under <image>/<page_index>/ subdirectories,
// so paths are sorted to keep page order stable.
func loadPages(dir string) ([]Page, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".json") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "ocr: walk output dir")
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, eris.New("ocr: engine produced no result files")
	}

	pages := make([]Page, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: read %s", path)
		}
		page, err := ParsePage(data)
		if err != nil {
			return nil, eris.Wrapf(err, "ocr: parse %s", path)
		}
		pages = append(pages, page)
	}
	return pages, nil
}
