// Package refresh holds the jobs that repopulate the cache store from the
// upstream dataset source.
package refresh

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"masader/internal/errors"
	"masader/internal/logger"
)

// CommandJob runs an external program that writes the catalog and tags into
// the cache store, e.g. the upstream scraper.
type CommandJob struct {
	Args   []string
	Env    []string
	Dir    string
	Logger logger.Logger
}

// NewCommandJob splits command on whitespace into program and arguments.
func NewCommandJob(command string, l logger.Logger) *CommandJob {
	if l == nil {
		l = logger.NopLogger
	}
	return &CommandJob{Args: strings.Fields(command), Logger: l}
}

func (j *CommandJob) Run(ctx context.Context) error {
	if len(j.Args) == 0 {
		return errors.New(errors.ErrRefresh, "no refresh command configured")
	}
	cmd := exec.CommandContext(ctx, j.Args[0], j.Args[1:]...)
	cmd.Env = append(os.Environ(), j.Env...)
	cmd.Dir = j.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	j.Logger.Infof("running %s", strings.Join(j.Args, " "))
	err := cmd.Run()

	sc := bufio.NewScanner(&out)
	for sc.Scan() {
		j.Logger.Debugf("%s: %s", j.Args[0], sc.Text())
	}
	if err != nil {
		return errors.WithCode(err, errors.ErrRefresh, "running "+j.Args[0])
	}
	return nil
}
