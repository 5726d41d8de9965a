package model

import (
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestSession(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	m := Session{UUID: id, Driver: "geckodriver"}
	assert.Equal(t, id, m.UUID)
	assert.Equal(t, "geckodriver", m.Driver)
	assert.Nil(t, m.Lifecycle)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
