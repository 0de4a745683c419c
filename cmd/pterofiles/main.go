// Package main provides a CLI for managing a panel server's files.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/sheepe/pterogo/internal/config"
	"github.com/sheepe/pterogo/pkg/client"
	"github.com/sheepe/pterogo/pkg/files"
	"github.com/sheepe/pterogo/pkg/logging"
	"github.com/sheepe/pterogo/pkg/metrics"
	"github.com/sheepe/pterogo/pkg/panel"
	"github.com/sheepe/pterogo/pkg/tree"
)

func main() {
	configPath := flag.String("config", "", "YAML config file (env overrides it)")
	serverID := flag.String("server", "", "Server identifier (default: config server)")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address")
	deleteArchive := flag.Bool("delete", false, "unzip: delete the archive afterwards")

	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if err := logging.Init(cfg.Logging()); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if *serverID == "" {
		*serverID = cfg.Server
	}
	if *serverID == "" {
		fmt.Fprintln(os.Stderr, "Error: no server given (-server or PTERO_SERVER)")
		os.Exit(1)
	}

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				logging.Error("metrics server failed", logging.Err(err))
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	m, err := connect(ctx, cfg, *serverID)
	if err != nil {
		exit(err)
	}

	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "ls", "list":
		err = cmdList(ctx, m, cmdArgs)
	case "cat":
		err = cmdCat(ctx, m, cmdArgs)
	case "write":
		err = cmdWrite(ctx, m, cmdArgs)
	case "mv":
		err = cmdMove(ctx, m, cmdArgs)
	case "cp":
		err = cmdCopy(ctx, m, cmdArgs)
	case "mkdir":
		err = cmdMkdir(ctx, m, cmdArgs)
	case "rm":
		err = cmdRemove(ctx, m, cmdArgs)
	case "zip":
		err = cmdZip(ctx, m, cmdArgs)
	case "unzip":
		err = cmdUnzip(ctx, m, cmdArgs, *deleteArchive)
	case "url":
		err = cmdURL(ctx, m, cmdArgs)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		exit(err)
	}
}

func printUsage() {
	fmt.Println(`pterofiles - panel file manager

Usage: pterofiles [flags] <command> [args]

Flags:
  -config <file>     YAML config file
  -server <id>       Server identifier
  -metrics <addr>    Serve Prometheus metrics (e.g. :9090)
  -delete            unzip: delete the archive afterwards

Commands:
  ls [dir]                      List a directory (default: /)
  cat <path>                    Print a file
  write <path>                  Write stdin to a file
  mv <path> <new-name>          Rename a file or directory
  cp <path> <dir> [new-name]    Copy into a directory
  mkdir <name> [location]       Create a directory
  rm <path>                     Delete a file or directory
  zip <path>                    Compress into an archive
  unzip <path>                  Decompress an archive in place
  url <path>                    Print a one-time download link

Environment:
  PTERO_HOST, PTERO_TOKEN, PTERO_SERVER, PTERO_TIMEOUT,
  PTERO_RATE_LIMIT, PTERO_RATE_BURST, LOG_LEVEL, LOG_FORMAT`)
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.Load()
}

func connect(ctx context.Context, cfg *config.Config, serverID string) (*files.Manager, error) {
	c := client.New(cfg.Client())
	if _, err := c.Verify(ctx); err != nil {
		return nil, err
	}
	return panel.New(c, serverID).Files(ctx)
}

// exit prints err with a hint on its category and exits.
func exit(err error) {
	switch {
	case errors.Is(err, files.ErrNotApplicable):
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	case errors.Is(err, files.ErrInconsistent):
		fmt.Fprintf(os.Stderr, "Error: %v (changed on the panel meanwhile?)\n", err)
	default:
		if te, ok := client.AsTransportError(err); ok {
			fmt.Fprintf(os.Stderr, "Cannot reach panel: %v\n", te)
			break
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return fmt.Errorf("usage: pterofiles %s", usage)
	}
	return nil
}

// lookup finds the node at an absolute path by listing its parent.
func lookup(ctx context.Context, m *files.Manager, path string) (*files.File, error) {
	parent, name := tree.SplitParentAndName(tree.ComposeChildPath("", path))
	entries, err := m.ListDirectory(ctx, parent)
	if err != nil {
		return nil, err
	}
	for _, f := range entries {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%s: no such file or directory", tree.ComposeChildPath("", path))
}

func cmdList(ctx context.Context, m *files.Manager, args []string) error {
	entries := m.Contents()
	if len(args) > 0 && tree.TrimTrailingSeparator(args[0]) != "" {
		var err error
		if entries, err = m.ListDirectory(ctx, args[0]); err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODE\tSIZE\tMODIFIED\tNAME")
	for _, f := range entries {
		name := f.Name
		if f.IsDirectory {
			name += "/"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", f.Mode, formatSize(f.Size), formatTime(f.ModifiedAt), name)
	}
	return w.Flush()
}

func cmdCat(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "cat <path>"); err != nil {
		return err
	}
	data, err := m.ReadFile(ctx, args[0])
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func cmdWrite(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "write <path>"); err != nil {
		return err
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return err
	}
	f, err := m.WriteFile(ctx, args[0], data)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %s (%s)\n", f.Location, formatSize(f.Size))
	return nil
}

func cmdMove(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 2, "mv <path> <new-name>"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	renamed, err := f.Rename(ctx, args[1])
	if err != nil {
		return err
	}
	fmt.Printf("Renamed %s -> %s\n", f.Location, renamed.Location)
	return nil
}

func cmdCopy(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 2, "cp <path> <dir> [new-name]"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	newName := ""
	if len(args) > 2 {
		newName = args[2]
	}
	if err := f.Duplicate(ctx, args[1], newName); err != nil {
		return err
	}
	fmt.Printf("Copied %s\n", f.Location)
	return nil
}

func cmdMkdir(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "mkdir <name> [location]"); err != nil {
		return err
	}
	location := ""
	if len(args) > 1 {
		location = args[1]
	}
	dir, err := m.Mkdir(ctx, args[0], location)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s\n", dir.Location)
	return nil
}

func cmdRemove(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "rm <path>"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	if err := f.Delete(ctx); err != nil {
		return err
	}
	fmt.Printf("Deleted %s\n", f.Location)
	return nil
}

func cmdZip(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "zip <path>"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	archive, err := f.Compress(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Created %s (%s)\n", archive.Location, formatSize(archive.Size))
	return nil
}

func cmdUnzip(ctx context.Context, m *files.Manager, args []string, deleteSelf bool) error {
	if err := need(args, 1, "unzip <path>"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	if err := f.Decompress(ctx, deleteSelf); err != nil {
		return err
	}
	fmt.Printf("Decompressed %s\n", f.Location)
	return nil
}

func cmdURL(ctx context.Context, m *files.Manager, args []string) error {
	if err := need(args, 1, "url <path>"); err != nil {
		return err
	}
	f, err := lookup(ctx, m, args[0])
	if err != nil {
		return err
	}
	url, err := f.DownloadURL(ctx)
	if err != nil {
		return err
	}
	fmt.Println(url)
	return nil
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
