package launcher

import (
	"errors"
	"reflect"
	"testing"

	"github.com/danmuck/simctl/internal/testutil/testlog"
)

func TestTranslatorArgsDerivation(t *testing.T) {
	cases := []struct {
		name string
		cfg  TranslatorConfig
		want []string
	}{
		{
			name: "full",
			cfg: TranslatorConfig{
				Path:           "/opt/translator",
				ConfigFile:     "/etc/translator.toml",
				ListenPort:     7020,
				MiddlewareHost: "127.0.0.1",
				MiddlewarePort: 6020,
				Extra:          []string{"--verbose"},
			},
			want: []string{
				"--config", "/etc/translator.toml",
				"--listen-port", "7020",
				"--middleware", "127.0.0.1:6020",
				"--verbose",
			},
		},
		{
			name: "path only",
			cfg:  TranslatorConfig{Path: "/opt/translator"},
			want: nil,
		},
		{
			name: "middleware requires host and port",
			cfg:  TranslatorConfig{Path: "/opt/translator", MiddlewareHost: "127.0.0.1"},
			want: nil,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.Args(); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Args() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNewRequiresPath(t *testing.T) {
	logger := testlog.Start(t)
	if _, err := New(TranslatorConfig{}, logger); !errors.Is(err, ErrPathRequired) {
		t.Fatalf("expected ErrPathRequired, got %v", err)
	}
}

func TestWaitAndStopBeforeStart(t *testing.T) {
	logger := testlog.Start(t)
	l, err := New(TranslatorConfig{Path: "/opt/translator"}, logger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := l.Wait(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("wait: expected ErrNotStarted, got %v", err)
	}
	if err := l.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("stop: expected ErrNotStarted, got %v", err)
	}
}
