package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"

	"github.com/sir_venger/drive_relay/pkg/chunker"
	"github.com/sir_venger/drive_relay/pkg/uploadclient"
	"github.com/sir_venger/drive_relay/pkg/uploadproto"
)

type options struct {
	proxyURL    string
	user        string
	userHeader  string
	parent      string
	chunkSize   int64
	retries     int
	timeout     time.Duration
	concurrency int
}

// main загружает файлы из аргументов через прокси, по одной сессии на файл.
func main() {
	var o options
	flag.StringVar(&o.proxyURL, "proxy", envOr("UPLOAD_PROXY", "http://localhost:8080"), "base URL of the upload relay")
	flag.StringVar(&o.user, "user", os.Getenv("UPLOAD_USER"), "caller identity passed to the relay")
	flag.StringVar(&o.userHeader, "user-header", "X-Auth-User", "trusted identity header")
	flag.StringVar(&o.parent, "parent", "", "destination folder id")
	flag.Int64Var(&o.chunkSize, "chunk-size", chunker.DefaultChunkSize, "chunk size in bytes")
	flag.IntVar(&o.retries, "retries", 0, "retries per failed chunk (0 disables)")
	flag.DurationVar(&o.timeout, "chunk-timeout", uploadclient.DefaultChunkTimeout, "timeout of one chunk request")
	flag.IntVar(&o.concurrency, "concurrency", 2, "files uploaded in parallel")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	files := flag.Args()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "usage: upload [flags] FILE...")
		flag.PrintDefaults()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	proxy := uploadclient.NewHTTPProxy(o.proxyURL, uploadclient.WithUser(o.userHeader, o.user))
	showBars := len(files) == 1 || o.concurrency == 1

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(max(o.concurrency, 1))
	for _, path := range files {
		g.Go(func() error {
			if err := uploadFile(ctx, proxy, path, o, showBars, log); err != nil {
				failed.Add(1)
				log.Error("upload failed", "file", path, "err", err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d uploads failed\n", n, len(files))
		os.Exit(1)
	}
}

func uploadFile(ctx context.Context, proxy uploadclient.Proxy, path string, o options, showBars bool, log *slog.Logger) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}

	src := uploadclient.Source{
		Name:     filepath.Base(path),
		MimeType: detectMIME(path),
		Size:     st.Size(),
		Reader:   f,
	}

	opts := []uploadclient.Option{
		uploadclient.WithChunkSize(o.chunkSize),
		uploadclient.WithChunkTimeout(o.timeout),
		uploadclient.WithParent(o.parent),
		uploadclient.WithLogger(log.With("file", src.Name)),
	}
	if o.retries > 0 {
		opts = append(opts, uploadclient.WithRetry(retryPolicy(o.retries)))
	}
	if showBars {
		opts = append(opts, uploadclient.WithObserver(uploadclient.NewProgressBar(os.Stdout, "")))
	} else {
		opts = append(opts, uploadclient.WithObserver(uploadclient.ObserverFuncs{
			Complete: func(file uploadproto.FileMetadata) {
				fmt.Printf("%s -> %s (%d bytes)\n", src.Name, file.ID, src.Size)
			},
		}))
	}

	tr, err := uploadclient.NewTransfer(proxy, src, opts...)
	if err != nil {
		return err
	}
	return tr.Start(ctx)
}

// detectMIME определяет тип по содержимому файла, без параметров вроде charset.
func detectMIME(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return "application/octet-stream"
	}
	base, _, err := mime.ParseMediaType(m.String())
	if err != nil {
		return m.String()
	}
	return base
}

func retryPolicy(retries int) func() backoff.BackOff {
	return func() backoff.BackOff {
		b := backoff.NewExponentialBackOff()
		b.InitialInterval = 500 * time.Millisecond
		b.MaxInterval = 30 * time.Second
		return backoff.WithMaxRetries(b, uint64(retries))
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
