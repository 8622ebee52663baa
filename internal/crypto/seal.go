package crypto

import (
	"encoding/json"

	"github.com/ppiankov/vigilo/internal/model"
)

// SealEvent encrypts an event's sensitive subtrees in place: arguments,
// the outcome result or message, and the diff. Returns the first error;
// callers must then strip the event rather than persist partial plaintext.
func SealEvent(k *Key, ev *model.Event) error {
	if k == nil {
		return nil
	}
	if len(ev.Arguments) == 0 {
		ev.Arguments = json.RawMessage("null")
	}
	enc, err := EncryptJSON(k, ev.ID, FieldArguments, ev.Arguments)
	if err != nil {
		return err
	}
	ev.Arguments = enc

	if ev.Outcome.IsError() {
		msgJSON, _ := json.Marshal(ev.Outcome.Message)
		enc, err := EncryptJSON(k, ev.ID, FieldOutcomeMessage, msgJSON)
		if err != nil {
			return err
		}
		ev.Outcome.Message = string(enc)
	} else if len(ev.Outcome.Result) > 0 {
		enc, err := EncryptJSON(k, ev.ID, FieldOutcomeResult, ev.Outcome.Result)
		if err != nil {
			return err
		}
		ev.Outcome.Result = enc
	}

	if ev.Diff != "" {
		diffJSON, _ := json.Marshal(ev.Diff)
		enc, err := EncryptJSON(k, ev.ID, FieldDiff, diffJSON)
		if err != nil {
			return err
		}
		ev.Diff = string(enc)
	}
	return nil
}

// Strip replaces an event's sensitive fields after a sealing failure so the
// record can still land in the ledger without leaking plaintext.
func Strip(ev *model.Event) {
	ev.Arguments = json.RawMessage("null")
	ev.Diff = ""
	ev.Outcome = model.Errf(string(model.KindCrypto), "event capture failed")
}
