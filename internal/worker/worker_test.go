package worker

import (
	"context"
	"testing"

	"order-console/internal/broker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWaker struct {
	woken []string
}

func (r *recordingWaker) Wake(collection string) {
	r.woken = append(r.woken, collection)
}

func TestWakeOnChange(t *testing.T) {
	w := &recordingWaker{}
	eh := broker.NewEventHandler()
	wakeOnChange(eh, w)

	body := []byte(`{"event_id":"e1","event_type":"DOCUMENT_CHANGED","collection":"products","document_id":"p1","operation":"DELETE"}`)
	require.NoError(t, eh.HandleBody(context.Background(), body))

	assert.Equal(t, []string{"products"}, w.woken)
}
