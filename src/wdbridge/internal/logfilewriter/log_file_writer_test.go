package logfilewriter

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/fs/fsmock"
	"github.com/uber/webdriver-bridge/src/wdbridge/internal/serverinfofile/serverinfofilemock"
	"go.uber.org/fx/fxtest"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestSetupOutputWriter(t *testing.T) {
	ctrl := gomock.NewController(t)
	serverInfoFileMock := serverinfofilemock.NewMockServerInfoFile(ctrl)
	fsMock := fsmock.NewMockBridgeFS(ctrl)

	t.Run("success", func(t *testing.T) {
		lifecycleMock := fxtest.NewLifecycle(t)
		p := Params{
			Lifecycle:      lifecycleMock,
			ServerInfoFile: serverInfoFileMock,
			FS:             fsMock,
		}

		fsMock.EXPECT().MkdirAll(gomock.Any()).Return(nil)
		file, err := os.CreateTemp(t.TempDir(), "")
		require.NoError(t, err)
		fsMock.EXPECT().TempFile(gomock.Any(), "chromedriver-*.log").Return(file, nil)
		serverInfoFileMock.EXPECT().UpdateField(fmt.Sprintf(_fmtOutputKey, "chromedriver"), file.Name()).Return(nil)

		writer, err := SetupOutputWriter(p, "chromedriver")
		require.NoError(t, err)

		_, err = writer.Write([]byte("Starting ChromeDriver on port 9515\nOnly local"))
		assert.NoError(t, err)

		serverInfoFileMock.EXPECT().RemoveField(fmt.Sprintf(_fmtOutputKey, "chromedriver")).Return(nil)
		fsMock.EXPECT().Remove(file.Name()).DoAndReturn(os.Remove)

		lifecycleMock.RequireStart()
		contentsBeforeStop, err := os.ReadFile(file.Name())
		require.NoError(t, err)
		assert.Contains(t, string(contentsBeforeStop), "Starting ChromeDriver on port 9515")
		lifecycleMock.RequireStop()

		_, err = os.Stat(file.Name())
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("mkdir fail", func(t *testing.T) {
		p := Params{Lifecycle: fxtest.NewLifecycle(t), ServerInfoFile: serverInfoFileMock, FS: fsMock}
		fsMock.EXPECT().MkdirAll(gomock.Any()).Return(errors.New("sample"))
		_, err := SetupOutputWriter(p, "chromedriver")
		assert.Error(t, err)
	})

	t.Run("tempfile fail", func(t *testing.T) {
		p := Params{Lifecycle: fxtest.NewLifecycle(t), ServerInfoFile: serverInfoFileMock, FS: fsMock}
		fsMock.EXPECT().MkdirAll(gomock.Any()).Return(nil)
		fsMock.EXPECT().TempFile(gomock.Any(), gomock.Any()).Return(nil, errors.New("sample"))
		_, err := SetupOutputWriter(p, "chromedriver")
		assert.Error(t, err)
	})

	t.Run("info file fail", func(t *testing.T) {
		p := Params{Lifecycle: fxtest.NewLifecycle(t), ServerInfoFile: serverInfoFileMock, FS: fsMock}
		file, err := os.CreateTemp(t.TempDir(), "")
		require.NoError(t, err)
		fsMock.EXPECT().MkdirAll(gomock.Any()).Return(nil)
		fsMock.EXPECT().TempFile(gomock.Any(), gomock.Any()).Return(file, nil)
		serverInfoFileMock.EXPECT().UpdateField(gomock.Any(), file.Name()).Return(errors.New("read-only"))
		fsMock.EXPECT().Remove(file.Name()).Return(nil)

		_, err = SetupOutputWriter(p, "geckodriver")
		assert.Error(t, err)
	})
}

func TestWrite(t *testing.T) {
	var buf bytes.Buffer
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig()),
		zapcore.AddSync(&buf),
		zap.InfoLevel,
	)
	w := loggerWriter{logger: zap.New(core).Sugar()}

	_, err := w.Write([]byte("first line\r\nsecond "))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 1)

	_, err = w.Write([]byte("half\n\n"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[0], "first line"))
	assert.True(t, strings.HasSuffix(lines[1], "second half"))

	_, err = w.Write([]byte("no newline"))
	require.NoError(t, err)
	w.Flush()
	assert.Len(t, strings.Split(strings.TrimSpace(buf.String()), "\n"), 3)
	assert.Contains(t, buf.String(), "no newline")
}
