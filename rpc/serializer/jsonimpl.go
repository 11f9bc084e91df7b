package serializer

import (
	"encoding/json"
	"github.com/ValentinKolb/dSock/rpc/common"
)

// NewJSONSerializer creates a new serializer using json encoding
func NewJSONSerializer() IRPCSerializer {
	return &jsonSerializerImpl{}
}

// jsonSerializerImpl implements the IRPCSerializer interface using json encoding
type jsonSerializerImpl struct {
}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (j jsonSerializerImpl) Name() string {
	return "json"
}

func (j jsonSerializerImpl) Serialize(env common.Envelope) ([]byte, error) {
	return json.Marshal(env)
}

func (j jsonSerializerImpl) Deserialize(b []byte, env *common.Envelope) error {
	return json.Unmarshal(b, env)
}

func (j jsonSerializerImpl) MarshalValue(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j jsonSerializerImpl) UnmarshalValue(b []byte, target any) error {
	return json.Unmarshal(b, target)
}
