package utils

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKind(t *testing.T) {
	wrapped := fmt.Errorf("saving ledger: %w", DatabaseError("dat.json", IoError("dat.json.tmp", fs.ErrPermission)))

	tests := []struct {
		name string
		err  error
		kind Kind
		want bool
	}{
		{"direct", NetworkError("feed", errors.New("reset")), KindNetwork, true},
		{"other kind", NetworkError("feed", errors.New("reset")), KindIO, false},
		{"outer of chain", wrapped, KindDatabase, true},
		{"inner of chain", wrapped, KindIO, true},
		{"status", fmt.Errorf("page: %w", &StatusError{Code: 503, URL: "/data/x"}), KindStatus, true},
		{"plain error", errors.New("boom"), KindNetwork, false},
		{"nil", nil, KindNetwork, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsKind(tt.err, tt.kind))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := IoError("/cache/a.lock", fs.ErrNotExist)

	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.Equal(t, "io error: file does not exist (/cache/a.lock)", err.Error())
	assert.Equal(t, "not found error: didn't find data", NotFoundError("", "data").Error())
}

func TestSuspendedErrors(t *testing.T) {
	var s SuspendedErrors
	s.Suspend("ignored", nil)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Suspend(fmt.Sprintf("page %d", i), errors.New("reset"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, s.Len())
	assert.Len(t, s.All(), 10)

	var one SuspendedErrors
	one.Suspend("Ch.1", errors.New("truncated"))
	var buf bytes.Buffer
	one.Print(&buf)
	assert.Equal(t, "[Ch.1] truncated\n", buf.String())
}
