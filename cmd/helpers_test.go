package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/pders01/trace/internal/config"
	"github.com/pders01/trace/internal/embeddings"
	"github.com/pders01/trace/internal/llm"
	"github.com/pders01/trace/internal/testutil"
)

// setupWorkspace runs the test inside a fresh workspace with fake backends.
// Every role gets its own model name so scripts can be told apart.
func setupWorkspace(t *testing.T) (*testutil.TempWorkspace, map[string]*testutil.ScriptedCompleter) {
	t.Helper()

	w := testutil.NewTempWorkspace(t)
	w.Chdir()

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("sync.confirm", config.ConfirmAuto)
	viper.Set("llm.retries", 1)

	oldCfgFile := cfgFile
	cfgFile = filepath.Join(w.Path, "config", "config.toml")
	t.Cleanup(func() { cfgFile = oldCfgFile })

	scripts := make(map[string]*testutil.ScriptedCompleter)
	for _, role := range config.Roles {
		model := "fake-" + role
		viper.Set("roles."+role+".model", model)
		scripts[model] = testutil.Script()
	}

	oldEmbedder, oldBackend := newEmbedder, completerBackend
	newEmbedder = func(cfg *config.Config) (embeddings.Embedder, error) {
		return &testutil.FakeEmbedder{}, nil
	}
	completerBackend = func(ctx context.Context, cfg *config.Config, model string) (llm.Completer, error) {
		c, ok := scripts[model]
		if !ok {
			return nil, fmt.Errorf("no script for model %s", model)
		}
		return c, nil
	}
	t.Cleanup(func() {
		newEmbedder = oldEmbedder
		completerBackend = oldBackend
	})

	return w, scripts
}

func script(scripts map[string]*testutil.ScriptedCompleter, role string) *testutil.ScriptedCompleter {
	return scripts["fake-"+role]
}

func resetSyncFlags() {
	syncYes = false
	syncWatch = false
	syncJSON = false
	syncToon = false
}

func seedCorpus(t *testing.T, w *testutil.TempWorkspace) {
	t.Helper()
	w.CreateFile(filepath.Join(testutil.DocsRoot, "login.md"),
		"Login requires a password of at least 10 characters. Three failed attempts lock the account.")
	w.CreateFile(filepath.Join(testutil.CasesRoot, "cases.csv"),
		"ID,Title\nTC_001,Lockout after three failed attempts\n")
}
