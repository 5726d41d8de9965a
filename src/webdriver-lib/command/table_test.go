package command

import (
	stderr "errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber/webdriver-bridge/src/webdriver-lib/errors"
)

func TestLookup(t *testing.T) {
	tests := []struct {
		name    string
		command Name
		variant Variant
		want    Spec
		wantErr bool
	}{
		{
			name:    "shared command",
			command: GetTitle,
			variant: Legacy,
			want:    get("/session/:session_id/title"),
		},
		{
			name:    "w3c window rect",
			command: GetWindowSize,
			variant: W3C,
			want:    get("/session/:session_id/window/rect"),
		},
		{
			name:    "legacy window size",
			command: GetWindowSize,
			variant: Legacy,
			want:    get("/session/:session_id/window/:window_handle/size"),
		},
		{
			name:    "auto resolves as w3c",
			command: AcceptAlert,
			variant: Auto,
			want:    post("/session/:session_id/alert/accept"),
		},
		{
			name:    "legacy alert",
			command: AcceptAlert,
			variant: Legacy,
			want:    post("/session/:session_id/accept_alert"),
		},
		{
			name:    "legacy only mouse command",
			command: MouseMoveTo,
			variant: W3C,
			wantErr: true,
		},
		{
			name:    "w3c only actions",
			command: Actions,
			variant: Legacy,
			wantErr: true,
		},
		{
			name:    "unknown",
			command: "dummyCommand",
			variant: W3C,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := Default().Lookup(tt.command, tt.variant)
			if tt.wantErr {
				var notFound *errors.CommandNotFoundError
				require.True(t, stderr.As(err, &notFound))
				assert.Equal(t, string(tt.command), notFound.Name)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewTableOverridesBase(t *testing.T) {
	base := map[Name]Spec{"ping": get("/ping"), "pong": get("/pong")}
	table := NewTable(base, map[Variant]map[Name]Spec{
		Legacy: {"ping": post("/legacy/ping")},
	})

	spec, err := table.Lookup("ping", Legacy)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, spec.Method)

	spec, err = table.Lookup("ping", W3C)
	require.NoError(t, err)
	assert.Equal(t, "/ping", spec.Path)

	// base is copied
	base["pong"] = get("/changed")
	spec, _ = table.Lookup("pong", W3C)
	assert.Equal(t, "/pong", spec.Path)
}

func TestWith(t *testing.T) {
	echo := map[Name]Spec{"dummyCommand": post("/session/:session_id/echo")}

	extended := Default().With(Auto, echo)
	for _, v := range []Variant{W3C, Legacy, Auto} {
		_, err := extended.Lookup("dummyCommand", v)
		assert.NoError(t, err)
	}

	_, err := Default().Lookup("dummyCommand", W3C)
	assert.Error(t, err, "the original table must not change")

	legacyOnly := Default().With(Legacy, echo)
	_, err = legacyOnly.Lookup("dummyCommand", Legacy)
	assert.NoError(t, err)
	_, err = legacyOnly.Lookup("dummyCommand", W3C)
	assert.Error(t, err)
}

func TestNames(t *testing.T) {
	names := Default().Names(W3C)
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.True(t, names[i-1] < names[i])
	}
	assert.Contains(t, names, Actions)
	assert.NotContains(t, names, MouseMoveTo)
}

func TestLoadOverrides(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		check   func(t *testing.T, o Overrides)
		wantErr string
	}{
		{
			name: "valid",
			doc: `
auto:
  dummyCommand:
    method: post
    path: /session/:session_id/echo
legacy:
  getTitle:
    method: GET
    path: /session/:session_id/legacy_title
`,
			check: func(t *testing.T, o Overrides) {
				table := o.Apply(Default())
				spec, err := table.Lookup("dummyCommand", W3C)
				require.NoError(t, err)
				assert.Equal(t, http.MethodPost, spec.Method)

				spec, err = table.Lookup(GetTitle, Legacy)
				require.NoError(t, err)
				assert.Equal(t, "/session/:session_id/legacy_title", spec.Path)

				spec, err = table.Lookup(GetTitle, W3C)
				require.NoError(t, err)
				assert.Equal(t, "/session/:session_id/title", spec.Path)
			},
		},
		{
			name: "empty",
			doc:  "",
			check: func(t *testing.T, o Overrides) {
				assert.Empty(t, o)
			},
		},
		{
			name:    "unknown variant",
			doc:     "rc:\n  open:\n    method: GET\n    path: /open\n",
			wantErr: "unknown protocol variant",
		},
		{
			name:    "bad method",
			doc:     "w3c:\n  open:\n    method: PATCH\n    path: /open\n",
			wantErr: "invalid method",
		},
		{
			name:    "not yaml",
			doc:     "w3c: [",
			wantErr: "decoding command overrides",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			o, err := LoadOverrides(strings.NewReader(tt.doc))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}
