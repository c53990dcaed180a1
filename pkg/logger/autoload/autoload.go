// Package autoload initializes the global logger from the LOG_*
// environment at import time. Blank-import it from main.
package autoload

import (
	configx "github.com/pawdesk/groomflow/pkg/config"
	logx "github.com/pawdesk/groomflow/pkg/logger"
)

func init() {
	logx.Init(*configx.MustNew[logx.Config]("LOG"))
}
