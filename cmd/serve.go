package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hxxxer/CheckupAI/internal/model"
	"github.com/hxxxer/CheckupAI/internal/pipeline"
)

const (
	maxUploadBytes  = 32 << 20
	shutdownTimeout = 10 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		mux := newServeMux(env, cfg.Server.UploadDir)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: mux,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			gracefulShutdown(srv)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// newServeMux wires the API routes.
func newServeMux(env *pipelineEnv, uploadDir string) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.HandleFunc("POST /api/upload-report", func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			http.Error(w, `{"error":"invalid multipart form"}`, http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"file is required"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()

		if err := os.MkdirAll(uploadDir, 0o755); err != nil {
			zap.L().Error("create upload dir failed", zap.Error(err))
			http.Error(w, `{"error":"upload failed"}`, http.StatusInternalServerError)
			return
		}
		dst := filepath.Join(uploadDir, filepath.Base(header.Filename))
		out, err := os.Create(dst)
		if err != nil {
			zap.L().Error("create upload file failed", zap.String("path", dst), zap.Error(err))
			http.Error(w, `{"error":"upload failed"}`, http.StatusInternalServerError)
			return
		}
		defer out.Close()
		if _, err := io.Copy(out, file); err != nil {
			zap.L().Error("write upload file failed", zap.String("path", dst), zap.Error(err))
			http.Error(w, `{"error":"upload failed"}`, http.StatusInternalServerError)
			return
		}

		zap.L().Info("report uploaded",
			zap.String("path", dst),
			zap.Int64("size", header.Size),
		)
		writeJSON(w, http.StatusOK, map[string]string{
			"message":   "File uploaded successfully",
			"file_path": dst,
			"user_id":   r.FormValue("user_id"),
		})
	})

	mux.HandleFunc("POST /api/analyze-report", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ImagePath         string   `json:"image_path"`
			UserID            string   `json:"user_id"`
			ChronicConditions []string `json:"chronic_conditions"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.ImagePath == "" {
			http.Error(w, `{"error":"image_path is required"}`, http.StatusBadRequest)
			return
		}

		analyzeReq := pipeline.AnalyzeRequest{
			ImagePath: req.ImagePath,
			UserID:    req.UserID,
		}
		if len(req.ChronicConditions) > 0 {
			analyzeReq.Profile = &model.UserProfile{
				UserID:            req.UserID,
				ChronicConditions: req.ChronicConditions,
			}
		}

		record, err := env.Pipeline.Analyze(r.Context(), analyzeReq)
		if err != nil {
			zap.L().Error("analyze request failed",
				zap.String("image", req.ImagePath),
				zap.Error(err),
			)
			http.Error(w, `{"error":"analysis failed"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, record)
	})

	mux.HandleFunc("POST /api/ask-question", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Question string `json:"question"`
			UserID   string `json:"user_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
			return
		}
		if req.Question == "" {
			http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
			return
		}

		res, err := env.Pipeline.Ask(r.Context(), req.UserID, req.Question)
		if err != nil {
			zap.L().Error("ask request failed", zap.Error(err))
			http.Error(w, `{"error":"question answering failed"}`, http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusOK, res)
	})

	return mux
}

// gracefulShutdown drains in-flight requests before closing the listener.
// It must not reuse the signal context, which is already canceled by the
// time shutdown starts.
func gracefulShutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zap.L().Warn("server shutdown", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
