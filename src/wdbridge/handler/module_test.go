package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	tally "github.com/uber-go/tally/v4"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/process"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/jsonrpcfx"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile"
	"go.uber.org/config"
	"go.uber.org/fx"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestModule(t *testing.T) {
	err := fx.ValidateApp(
		Module,
		fx.Provide(
			func() config.Provider { return nil },
			func() *zap.SugaredLogger { return zap.NewNop().Sugar() },
			func() tally.Scope { return tally.NoopScope },
			func() process.Launcher { return nil },
			func() fs.BridgeFS { return nil },
			func() serverinfofile.ServerInfoFile { return nil },
			func() jsonrpcfx.JSONRPCModule { return nil },
		),
	)
	assert.NoError(t, err)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
