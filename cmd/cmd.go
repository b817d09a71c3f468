package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/forkops/replay-go/internal/buildinfo"
	"github.com/forkops/replay-go/internal/git"
	"github.com/forkops/replay-go/internal/logging"
	"github.com/forkops/replay-go/internal/replay"
)

// envConfig holds settings that default from the environment; explicit flags
// override them.
type envConfig struct {
	Token string `env:"GITHUB_TOKEN"`
}

func Run() error {
	return run(os.Args[1:], os.Stdout)
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("replay-go", flag.ContinueOnError)
	repoSlug := fs.String("repo-slug", "", "hosting slug in the form OWNER/REPO, used to build the push URL")
	upstreamURL := fs.String("upstream-url", "", "upstream repository URL to replay commits from")
	upstreamBranch := fs.String("upstream-branch", "main", "upstream branch to track")
	workDir := fs.String("work-dir", ".", "directory of the forked working repository")
	branchBase := fs.String("branch", "", "base name for replay branches (default: replay-{date})")
	token := fs.String("token", "", "access token for pushing; defaults to the GITHUB_TOKEN env var")
	configPath := fs.String("config-path", "", "directory on main whose files are preserved across replay")
	ciDir := fs.String("ci-dir", ".circleci", "CI definition subdirectory under the config path")
	commitDelay := fs.Int("commit-delay", 10, "seconds to sleep between pushes")
	replayDays := fs.Int("replay-days", 1, "days of upstream history to replay")
	pushRetries := fs.Uint64("push-retries", 0, "retry attempts for a failed push before aborting")
	commitName := fs.String("commit-name", "replay-bot", "committer name for replayed commits")
	commitEmail := fs.String("commit-email", "", "committer email for replayed commits")
	debug := fs.Bool("debug", false, "enable verbose console output")
	logPath := fs.String("log-path", "", "directory for the persistent log file")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.Version())
		return nil
	}
	if *upstreamURL == "" {
		return fmt.Errorf("-upstream-url is required")
	}

	var cfg envConfig
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	if *token == "" {
		*token = cfg.Token
	}
	// A slug means the push goes to the hosting platform over HTTPS, which
	// cannot succeed without a credential.
	if *repoSlug != "" && *token == "" {
		return fmt.Errorf("-token or GITHUB_TOKEN is required when -repo-slug is set")
	}

	logger, closeLog, err := logging.New(*debug, *logPath)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	svc, err := git.Open(*workDir)
	if err != nil {
		return err
	}
	logger.Debug("opened working repository", slog.String("path", svc.RepoPath()))
	exec := replay.New(svc, replay.Options{
		RepoSlug:       *repoSlug,
		UpstreamURL:    *upstreamURL,
		UpstreamBranch: *upstreamBranch,
		BranchBase:     *branchBase,
		Token:          *token,
		ConfigPath:     *configPath,
		CIDir:          *ciDir,
		Identity:       git.Identity{Name: *commitName, Email: *commitEmail},
		CommitDelay:    time.Duration(*commitDelay) * time.Second,
		ReplayDays:     *replayDays,
		PushRetries:    *pushRetries,
	}, logger)

	branches, err := exec.Run(context.Background())
	if err != nil {
		return err
	}
	logger.Info("triggered commits", slog.Any("branches", branches))
	return nil
}
