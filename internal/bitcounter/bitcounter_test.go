package bitcounter

import (
	"testing"

	"hwsim.dev/nrfperiph/internal/dppi"
)

func TestCompareFiresAtLimit(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("bitcounter0", fabric)
	i.Limit = 3
	i.Publish = dppi.PublishEnable | 1
	fabric.EnableChannels(1 << 1)

	var fired int
	cb := dppi.NewTaskCallback(func() { fired++ })
	fabric.Subscribe(1, cb, dppi.NoParam())

	i.TaskIncrement()
	i.TaskIncrement()
	if fired != 0 {
		t.Fatalf("fired before reaching limit")
	}
	i.TaskIncrement()
	if fired != 1 {
		t.Fatalf("fired = %d at limit, want 1", fired)
	}
	i.TaskIncrement()
	if fired != 1 {
		t.Fatalf("compare must not refire past the limit, fired=%d", fired)
	}
}

func TestClearResetsCount(t *testing.T) {
	fabric := dppi.New("dppic", 0, 8, 0)
	i := New("bitcounter0", fabric)
	i.TaskIncrement()
	i.TaskIncrement()
	i.TaskClear()
	if i.Count != 0 {
		t.Fatalf("Count = %d after clear, want 0", i.Count)
	}
}
