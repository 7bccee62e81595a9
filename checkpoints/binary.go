package checkpoints

import (
	"fmt"
	"math"
	"sort"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Binary checkpoint format: protobuf wire encoding with a fixed field
// numbering. Field numbers must not be reused or renumbered once a
// checkpoint has been written.
//
//	Checkpoint:      1=metadata 2=training_state 3=weights(repeated) 4=optimizer_state
//	Metadata:        1=version 2=framework 3=created_at(unixnano) 4=description 5=tags(repeated)
//	TrainingState:   1=epoch 2=step 3=learning_rate 4=best_loss 5=total_steps
//	WeightTensor:    1=name 2=shape(packed) 3=data(packed fixed32) 4=layer 5=type
//	OptimizerState:  1=type 2=parameters(repeated: 1=key 2=value) 3=state_data(repeated)
//	OptimizerTensor: 1=name 2=shape(packed) 3=data(packed fixed32) 4=state_type

const (
	fieldCheckpointMetadata  = 1
	fieldCheckpointTraining  = 2
	fieldCheckpointWeight    = 3
	fieldCheckpointOptimizer = 4
)

func marshalCheckpoint(cp *Checkpoint) []byte {
	var b []byte
	b = appendMessage(b, fieldCheckpointMetadata, marshalMetadata(&cp.Metadata))
	b = appendMessage(b, fieldCheckpointTraining, marshalTrainingState(&cp.TrainingState))
	for i := range cp.Weights {
		b = appendMessage(b, fieldCheckpointWeight, marshalWeightTensor(&cp.Weights[i]))
	}
	if cp.OptimizerState != nil {
		b = appendMessage(b, fieldCheckpointOptimizer, marshalOptimizerState(cp.OptimizerState))
	}
	return b
}

func unmarshalCheckpoint(data []byte) (*Checkpoint, error) {
	cp := &Checkpoint{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		if typ != protowire.BytesType {
			return nil, fmt.Errorf("unexpected wire type %v for checkpoint field %d", typ, num)
		}
		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]

		var err error
		switch num {
		case fieldCheckpointMetadata:
			err = unmarshalMetadata(msg, &cp.Metadata)
		case fieldCheckpointTraining:
			err = unmarshalTrainingState(msg, &cp.TrainingState)
		case fieldCheckpointWeight:
			var wt WeightTensor
			if err = unmarshalWeightTensor(msg, &wt); err == nil {
				cp.Weights = append(cp.Weights, wt)
			}
		case fieldCheckpointOptimizer:
			cp.OptimizerState = &OptimizerState{}
			err = unmarshalOptimizerState(msg, cp.OptimizerState)
		}
		if err != nil {
			return nil, err
		}
	}
	return cp, nil
}

func marshalMetadata(m *Metadata) []byte {
	var b []byte
	b = appendString(b, 1, m.Version)
	b = appendString(b, 2, m.Framework)
	if !m.CreatedAt.IsZero() {
		b = protowire.AppendTag(b, 3, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(m.CreatedAt.UnixNano()))
	}
	b = appendString(b, 4, m.Description)
	for _, tag := range m.Tags {
		b = appendString(b, 5, tag)
	}
	return b
}

func unmarshalMetadata(data []byte, m *Metadata) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case 1:
			m.Version = v.str
		case 2:
			m.Framework = v.str
		case 3:
			m.CreatedAt = time.Unix(0, int64(v.varint))
		case 4:
			m.Description = v.str
		case 5:
			m.Tags = append(m.Tags, v.str)
		}
		return nil
	})
}

func marshalTrainingState(ts *TrainingState) []byte {
	var b []byte
	b = appendVarint(b, 1, uint64(ts.Epoch))
	b = appendVarint(b, 2, uint64(ts.Step))
	b = appendFloat(b, 3, ts.LearningRate)
	b = appendFloat(b, 4, ts.BestLoss)
	b = appendVarint(b, 5, uint64(ts.TotalSteps))
	return b
}

func unmarshalTrainingState(data []byte, ts *TrainingState) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case 1:
			ts.Epoch = int(v.varint)
		case 2:
			ts.Step = int(v.varint)
		case 3:
			ts.LearningRate = math.Float32frombits(v.fixed32)
		case 4:
			ts.BestLoss = math.Float32frombits(v.fixed32)
		case 5:
			ts.TotalSteps = int(v.varint)
		}
		return nil
	})
}

func marshalWeightTensor(wt *WeightTensor) []byte {
	var b []byte
	b = appendString(b, 1, wt.Name)
	b = appendPackedInts(b, 2, wt.Shape)
	b = appendPackedFloats(b, 3, wt.Data)
	b = appendString(b, 4, wt.Layer)
	b = appendString(b, 5, wt.Type)
	return b
}

func unmarshalWeightTensor(data []byte, wt *WeightTensor) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v value) error {
		var err error
		switch num {
		case 1:
			wt.Name = v.str
		case 2:
			wt.Shape, err = consumePackedInts(v.bytes)
		case 3:
			wt.Data, err = consumePackedFloats(v.bytes)
		case 4:
			wt.Layer = v.str
		case 5:
			wt.Type = v.str
		}
		return err
	})
}

func marshalOptimizerState(os *OptimizerState) []byte {
	var b []byte
	b = appendString(b, 1, os.Type)

	// Sorted keys for a deterministic encoding
	keys := make([]string, 0, len(os.Parameters))
	for k := range os.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var param []byte
		param = appendString(param, 1, k)
		param = protowire.AppendTag(param, 2, protowire.Fixed64Type)
		param = protowire.AppendFixed64(param, math.Float64bits(os.Parameters[k]))
		b = appendMessage(b, 2, param)
	}

	for i := range os.StateData {
		b = appendMessage(b, 3, marshalOptimizerTensor(&os.StateData[i]))
	}
	return b
}

func unmarshalOptimizerState(data []byte, state *OptimizerState) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v value) error {
		switch num {
		case 1:
			state.Type = v.str
		case 2:
			var key string
			var val float64
			err := consumeFields(v.bytes, func(n protowire.Number, t protowire.Type, pv value) error {
				switch n {
				case 1:
					key = pv.str
				case 2:
					val = math.Float64frombits(pv.fixed64)
				}
				return nil
			})
			if err != nil {
				return err
			}
			if state.Parameters == nil {
				state.Parameters = make(map[string]float64)
			}
			state.Parameters[key] = val
		case 3:
			var ot OptimizerTensor
			if err := unmarshalOptimizerTensor(v.bytes, &ot); err != nil {
				return err
			}
			state.StateData = append(state.StateData, ot)
		}
		return nil
	})
}

func marshalOptimizerTensor(ot *OptimizerTensor) []byte {
	var b []byte
	b = appendString(b, 1, ot.Name)
	b = appendPackedInts(b, 2, ot.Shape)
	b = appendPackedFloats(b, 3, ot.Data)
	b = appendString(b, 4, ot.StateType)
	return b
}

func unmarshalOptimizerTensor(data []byte, ot *OptimizerTensor) error {
	return consumeFields(data, func(num protowire.Number, typ protowire.Type, v value) error {
		var err error
		switch num {
		case 1:
			ot.Name = v.str
		case 2:
			ot.Shape, err = consumePackedInts(v.bytes)
		case 3:
			ot.Data, err = consumePackedFloats(v.bytes)
		case 4:
			ot.StateType = v.str
		}
		return err
	})
}

// value carries one decoded wire value; only the member matching the wire
// type is set
type value struct {
	varint  uint64
	fixed32 uint32
	fixed64 uint64
	bytes   []byte
	str     string
}

// consumeFields walks every field in a message, dispatching decoded values
// to fn
func consumeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, v value) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		var v value
		switch typ {
		case protowire.VarintType:
			v.varint, n = protowire.ConsumeVarint(data)
		case protowire.Fixed32Type:
			v.fixed32, n = protowire.ConsumeFixed32(data)
		case protowire.Fixed64Type:
			v.fixed64, n = protowire.ConsumeFixed64(data)
		case protowire.BytesType:
			v.bytes, n = protowire.ConsumeBytes(data)
			v.str = string(v.bytes)
		default:
			return fmt.Errorf("unsupported wire type %v for field %d", typ, num)
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		if err := fn(num, typ, v); err != nil {
			return err
		}
	}
	return nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendFloat(b []byte, num protowire.Number, v float32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed32Type)
	return protowire.AppendFixed32(b, math.Float32bits(v))
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendPackedInts(b []byte, num protowire.Number, vals []int) []byte {
	if len(vals) == 0 {
		return b
	}
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	return appendMessage(b, num, packed)
}

func consumePackedInts(data []byte) ([]int, error) {
	var vals []int
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		vals = append(vals, int(v))
	}
	return vals, nil
}

func appendPackedFloats(b []byte, num protowire.Number, vals []float32) []byte {
	if len(vals) == 0 {
		return b
	}
	packed := make([]byte, 0, 4*len(vals))
	for _, v := range vals {
		packed = protowire.AppendFixed32(packed, math.Float32bits(v))
	}
	return appendMessage(b, num, packed)
}

func consumePackedFloats(data []byte) ([]float32, error) {
	vals := make([]float32, 0, len(data)/4)
	for len(data) > 0 {
		v, n := protowire.ConsumeFixed32(data)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		data = data[n:]
		vals = append(vals, math.Float32frombits(v))
	}
	return vals, nil
}
