package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Preparation is the outcome of preparing a request. Call is nil when the
// request is not ready; Hint then explains why, or is nil while the
// recipient has not been entered yet.
type Preparation struct {
	Call *PreparedCall
	Hint error
}

func (p Preparation) Ready() bool {
	return p.Call != nil
}

type Preparer struct {
	sim Simulator
	now func() time.Time
}

func NewPreparer(sim Simulator) *Preparer {
	return &Preparer{sim: sim, now: time.Now}
}

// Prepare validates req, encodes the transfer for conn and simulates it.
// It never returns a fault: every failure is reported through Hint.
func (p *Preparer) Prepare(ctx context.Context, conn Connection, req TransferRequest) Preparation {
	if err := req.Validate(); err != nil {
		var vErr *ValidationError
		if errors.As(err, &vErr) && vErr.Code == CodeRecipientUnset {
			return Preparation{}
		}
		return Preparation{Hint: err}
	}

	recipient := common.HexToAddress(req.Recipient)
	data, err := EncodeTransfer(recipient, req.Amount)
	if err != nil {
		return Preparation{Hint: &ValidationError{Field: "amount", Code: CodeAmountTooLarge, Message: err.Error()}}
	}

	call := &PreparedCall{
		Chain:      conn.Chain,
		From:       conn.Account,
		Token:      common.HexToAddress(req.TokenAddress),
		Recipient:  recipient,
		Amount:     req.clone().Amount,
		Data:       data,
		PreparedAt: p.now(),
	}

	if err := p.sim.SimulateCall(ctx, call); err != nil {
		var simErr *SimulationError
		if !errors.As(err, &simErr) {
			simErr = &SimulationError{Cause: err}
		}
		return Preparation{Hint: simErr}
	}

	return Preparation{Call: call}
}
