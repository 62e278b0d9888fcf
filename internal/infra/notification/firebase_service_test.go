package notification

import (
	"context"
	"fmt"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	batches [][]string
}

func (f *fakeSender) SendEachForMulticast(_ context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.batches = append(f.batches, message.Tokens)
	responses := make([]*messaging.SendResponse, len(message.Tokens))
	for i := range responses {
		responses[i] = &messaging.SendResponse{Success: true}
	}

	return &messaging.BatchResponse{SuccessCount: len(message.Tokens), Responses: responses}, nil
}

func TestFirebaseService_SendBatchNotificationChunks(t *testing.T) {
	sender := &fakeSender{}
	svc := &firebaseService{client: sender}

	tokens := make([]string, 1200)
	for i := range tokens {
		tokens[i] = fmt.Sprintf("tok-%d", i)
	}

	success, failure, invalid, err := svc.SendBatchNotification(context.Background(), tokens, "t", "b", nil)
	require.NoError(t, err)
	assert.Equal(t, 1200, success)
	assert.Zero(t, failure)
	assert.Empty(t, invalid)
	require.Len(t, sender.batches, 3)
	assert.Len(t, sender.batches[2], 200)
}

func TestFirebaseService_NoTokens(t *testing.T) {
	sender := &fakeSender{}
	svc := &firebaseService{client: sender}

	success, _, _, err := svc.SendBatchNotification(context.Background(), nil, "t", "b", nil)
	require.NoError(t, err)
	assert.Zero(t, success)
	assert.Empty(t, sender.batches)
}
