package source

import (
	"fmt"
	"time"
)

// Source kinds accepted by New.
const (
	KindGitHub = "github"
	KindFile   = "file"
)

// Options selects and configures a fetcher.
type Options struct {
	Kind     string
	GitHub   GitHubConfig
	FilePath string
	Timeout  time.Duration
}

// New builds the fetcher named by opts.Kind.
func New(opts Options) (Fetcher, error) {
	switch opts.Kind {
	case KindGitHub, "":
		gh := opts.GitHub
		if gh.Timeout == 0 {
			gh.Timeout = opts.Timeout
		}
		return NewGitHubFetcher(gh)
	case KindFile:
		return NewFileFetcher(opts.FilePath)
	default:
		return nil, fmt.Errorf("unknown source kind %q", opts.Kind)
	}
}
