package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("TEMPORA_TEST_MODE") == "" {
			_ = os.Setenv("TEMPORA_TEST_MODE", "1")
		}
	})
}
