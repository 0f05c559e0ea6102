package app

import (
	"github.com/ben-ranford/noderesolve/internal/report"
	"github.com/ben-ranford/noderesolve/internal/resolver"
)

type Mode string

const (
	ModeResolve Mode = "resolve"
	ModeLoad    Mode = "load"
)

const defaultConcurrency = 8

type Request struct {
	Mode     Mode
	RootPath string
	Resolve  ResolveRequest
	Load     LoadRequest
}

// ResolveRequest describes one batch of specifiers. ScanPaths name source
// files or directories whose imports join the batch. Overrides holds the
// values set on the command line; they win over the config file.
type ResolveRequest struct {
	Specifiers  []string
	ScanPaths   []string
	Importer    string
	ReadStdin   bool
	Format      report.Format
	ConfigPath  string
	DepsCache   string
	NodeBuiltin string
	External    []string
	Concurrency int
	Verbose     bool
	Overrides   resolver.Overrides
}

type LoadRequest struct {
	ID         string
	Production bool
}

func DefaultRequest() Request {
	return Request{
		Mode:     ModeResolve,
		RootPath: ".",
		Resolve: ResolveRequest{
			Format:      report.FormatTable,
			Concurrency: defaultConcurrency,
		},
	}
}
