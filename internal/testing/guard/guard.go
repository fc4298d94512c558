package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("PACSLINK_TEST_MODE") == "" {
			_ = os.Setenv("PACSLINK_TEST_MODE", "1")
		}
	})
}
