package app

import (
	"github.com/specialistvlad/nodegraph/internal/executor"
	"github.com/specialistvlad/nodegraph/internal/runlog"
	"github.com/specialistvlad/nodegraph/modules/api"
	"github.com/specialistvlad/nodegraph/modules/db"
	"github.com/specialistvlad/nodegraph/modules/file"
)

// coreModules is the definitive list of executors compiled into the
// nodegraph binary, configured from cfg. Script output goes to log.
func coreModules(cfg *Config, log *runlog.Log) []executor.Module {
	return []executor.Module{
		&api.Module{Timeout: cfg.HTTPTimeout},
		&db.Module{MaxRows: cfg.DBMaxRows},
		&file.Module{Timeout: cfg.ScriptTimeout, Streams: log.AddOutput},
	}
}
