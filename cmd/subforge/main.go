// Command subforge creates GitHub-backed projects inside a submodule
// workspace and manages the workspace's submodules.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/Iron-Ham/subforge/internal/cmd"
	"github.com/Iron-Ham/subforge/internal/errors"
)

// version is set at build time with -ldflags "-X main.version=v1.2.3".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx, version)
	stop()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes the one-line failure summary. Remediation for warnings
// is printed with the command's report, not here.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: [%s] %v\n", errors.Kind(err), err)
}
