package serializer

import (
	"bytes"
	"encoding/gob"
	"github.com/ValentinKolb/dSock/rpc/common"
)

// NewGOBSerializer creates a new serializer using Go's binary gob format
func NewGOBSerializer() IRPCSerializer {
	return &gobSerializerImpl{}
}

// gobSerializerImpl implements the IRPCSerializer interface using gob encoding
type gobSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (g gobSerializerImpl) Name() string {
	return "gob"
}

func (g gobSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return g.MarshalValue(env)
}

func (g gobSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return g.UnmarshalValue(b, env)
}

func (g gobSerializerImpl) MarshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g gobSerializerImpl) UnmarshalValue(b []byte, target any) error {
	buf := bytes.NewBuffer(b)
	dec := gob.NewDecoder(buf)
	return dec.Decode(target)
}
