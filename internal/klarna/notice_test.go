package klarna

import (
	"bytes"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLogNoticeOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	LogNoticeOnce("licensed under BSL 1.1")
	LogNoticeOnce("licensed under BSL 1.1")
	LogNoticeOnce("something else")

	assert.Equal(t, 1, strings.Count(buf.String(), "Klarna:"))
	assert.Contains(t, buf.String(), "licensed under BSL 1.1")
}
