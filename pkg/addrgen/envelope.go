package addrgen

import "encoding/json"

// Envelope status values.
const (
	StatusOK  = "ok"
	StatusErr = "err"
)

// internalEnvelope is returned when an envelope cannot be marshaled.
const internalEnvelope = `{"status":"err","error":"internal"}`

type deriveEnvelope struct {
	Status  string `json:"status"`
	Address string `json:"address"`
}

type batchEnvelope struct {
	Status    string   `json:"status"`
	Start     uint32   `json:"start"`
	Count     uint32   `json:"count"`
	Addresses []string `json:"addresses"`
}

// errorEnvelope carries only the stable ErrorCode string. Human-readable
// detail stays in Error.Message for Go callers and the CLI.
type errorEnvelope struct {
	Status string `json:"status"`
	Error  string `json:"error"`
}

// DeriveJSON runs Derive and returns the outcome as a JSON envelope:
// {"status":"ok","address":...} or {"status":"err","error":code}. It never
// panics.
func (d *Deriver) DeriveJSON(ufvk string, index uint32) (out []byte) {
	defer recoverEnvelope(&out)

	addr, err := d.Derive(ufvk, index)
	if err != nil {
		return errorJSON(err)
	}
	return marshalEnvelope(deriveEnvelope{Status: StatusOK, Address: addr})
}

// BatchJSON runs Batch and returns the outcome as a JSON envelope:
// {"status":"ok","start":S,"count":C,"addresses":[...]} or
// {"status":"err","error":code}. It never panics.
func (d *Deriver) BatchJSON(ufvk string, start, count uint32) (out []byte) {
	defer recoverEnvelope(&out)

	addrs, err := d.Batch(ufvk, start, count)
	if err != nil {
		return errorJSON(err)
	}
	if addrs == nil {
		addrs = []string{}
	}
	return marshalEnvelope(batchEnvelope{
		Status:    StatusOK,
		Start:     start,
		Count:     count,
		Addresses: addrs,
	})
}

// DeriveJSON is Deriver.DeriveJSON on mainnet.
func DeriveJSON(ufvk string, index uint32) []byte {
	return defaultDeriver.DeriveJSON(ufvk, index)
}

// BatchJSON is Deriver.BatchJSON on mainnet.
func BatchJSON(ufvk string, start, count uint32) []byte {
	return defaultDeriver.BatchJSON(ufvk, start, count)
}

// ErrorJSON returns the error envelope for err.
func ErrorJSON(err error) []byte {
	return errorJSON(err)
}

func errorJSON(err error) []byte {
	return marshalEnvelope(errorEnvelope{Status: StatusErr, Error: string(CodeOf(err))})
}

func marshalEnvelope(v interface{}) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Errorf("Failed to marshal envelope: %v", err)
		return []byte(internalEnvelope)
	}
	return b
}

func recoverEnvelope(out *[]byte) {
	if r := recover(); r != nil {
		log.Errorf("Recovered from panic during derivation: %v", r)
		*out = []byte(internalEnvelope)
	}
}
