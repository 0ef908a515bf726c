package chain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
)

func TestReceiptNotFoundUnwrapsSentinel(t *testing.T) {
	assert.True(t, receiptNotFound(ethereum.NotFound))
	assert.True(t, receiptNotFound(fmt.Errorf("rpc: %w", ethereum.NotFound)))

	assert.False(t, receiptNotFound(nil))
	assert.False(t, receiptNotFound(errors.New("connection reset")))
}
