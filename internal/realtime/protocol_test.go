package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/tictactoe-live/internal/model"
	"github.com/mcoot/tictactoe-live/internal/services/board"
)

func TestBoardUpdatedWireShape(t *testing.T) {
	var b board.Board
	b[0] = board.X
	b[4] = board.O

	data, err := Encode(TypeBoardUpdated, BoardUpdatedPayload{
		Board:      b,
		LastIndex:  4,
		NextTurn:   "alice",
		NextMarker: board.X,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"type": "BOARD_UPDATED",
		"payload": {
			"board": ["X", null, null, null, "O", null, null, null, null],
			"lastIndex": 4,
			"nextTurn": "alice",
			"nextMarker": "X",
			"outcome": null
		}
	}`, string(data))
}

func TestDrawOutcomeHasNullWinner(t *testing.T) {
	data, err := Encode(TypeBoardUpdated, BoardUpdatedPayload{Outcome: &OutcomePayload{Draw: true}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"outcome":{"winner":null,"draw":true}`)
}

func TestDecodeKeepsPayloadRaw(t *testing.T) {
	env, err := Decode([]byte(`{"type":"MOVE","payload":{"roomName":"a+b","cellIndex":0,"identity":"a"}}`))
	require.NoError(t, err)
	assert.Equal(t, TypeMove, env.Type)

	var p MovePayload
	require.NoError(t, DecodePayload(env, &p))
	require.NotNil(t, p.CellIndex)
	assert.Equal(t, 0, *p.CellIndex)
	assert.Equal(t, model.Username("a"), p.Identity)
}

func TestDecodeRejectsMalformed(t *testing.T) {
	_, err := Decode([]byte(`[1,2,3]`))
	assert.ErrorIs(t, err, model.ErrMalformedEnvelope)

	env, err := Decode([]byte(`{"type":"CHAT","payload":"oops"}`))
	require.NoError(t, err)
	assert.ErrorIs(t, DecodePayload(env, &ChatPayload{}), model.ErrMalformedEnvelope)
}
