package cmd

import "testing"

func TestStatsCommand(t *testing.T) {
	w, _ := setupWorkspace(t)
	seedCorpus(t, w)
	resetSyncFlags()

	if err := runSync(nil, []string{}); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	statsJSON = true
	defer func() { statsJSON = false }()
	if err := runStats(nil, []string{}); err != nil {
		t.Fatalf("stats command failed: %v", err)
	}
}
