package interview

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionDefaultsDuration(t *testing.T) {
	s := NewSession("s1", JobContext{Role: "Backend Engineer"}, 0)
	assert.Equal(t, DefaultDuration, s.Duration)

	s = NewSession("s2", JobContext{Role: "SRE"}, time.Minute)
	assert.Equal(t, time.Minute, s.Duration)
}

func TestJobContextValidate(t *testing.T) {
	assert.Error(t, JobContext{}.Validate())
	assert.NoError(t, JobContext{Role: "QA"}.Validate())
}

func TestFinalizeGuardIsExclusive(t *testing.T) {
	s := NewSession("s1", JobContext{Role: "QA"}, time.Minute)

	const callers = 32
	var won atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.TryBeginFinalize() {
				won.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.True(t, s.Finalizing())

	s.ReleaseFinalize()
	assert.False(t, s.Finalizing())
	assert.True(t, s.TryBeginFinalize())
}
