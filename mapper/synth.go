// Copyright 2020-2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mapper

import (
	"fmt"

	"github.com/bufbuild/typeproto/ir"
	"github.com/bufbuild/typeproto/typegraph"
)

// mapSignature maps a call signature to an RPC. Parameters are bundled into
// a synthesized request message, unless there is a single parameter that is
// already a message. A void result becomes an empty response message.
//
// Mapping the same function type again returns a new RPC with the same
// input and output.
func (m *Mapper) mapSignature(t typegraph.Type, sig typegraph.Signature) (*ir.RPC, error) {
	if rpc, ok := m.rpcs[t]; ok {
		return &ir.RPC{Input: rpc.Input, Output: rpc.Output}, nil
	}
	p := m.prov
	method := p.Name(p.Symbol(t))
	if method == "" {
		method = "Anonymous"
	}

	input, err := m.synthesize(sig.Params, method+"Request", t)
	if err != nil {
		return nil, err
	}

	var output ir.TypeExpr
	if p.TypeFlags(sig.Return).Has(typegraph.Void) {
		output, err = m.synthesize(nil, method+"Response", t)
	} else {
		var res Result
		res, err = m.Map(sig.Return)
		output = res.Type
	}
	if err != nil {
		return nil, err
	}
	rpc := &ir.RPC{Input: input, Output: output}
	m.rpcs[t] = rpc
	return &ir.RPC{Input: input, Output: output}, nil
}

// synthesize returns a message with one field per parameter. The message is
// recorded as artificial, to be placed next to the declaration of source.
func (m *Mapper) synthesize(params []typegraph.Symbol, name string, source typegraph.Type) (ir.TypeExpr, error) {
	p := m.prov
	if len(params) == 1 {
		res, err := m.Map(p.TypeOf(params[0]))
		if err != nil {
			return nil, err
		}
		switch typ := res.Type.(type) {
		case *ir.Stream:
			if !ir.IsMessage(typ.Elem) {
				msg, err := m.message(name, source, []*ir.Field{m.param(params[0], 0, typ.Elem, res.Attrs)})
				if err != nil {
					return nil, err
				}
				typ.Elem = msg
			}
			return typ, nil
		default:
			if ir.IsMessage(typ) {
				return typ, nil
			}
		}
	}

	fields := make([]*ir.Field, 0, len(params))
	for i, param := range params {
		res, err := m.Map(p.TypeOf(param))
		if err != nil {
			return nil, err
		}
		fields = append(fields, m.param(param, i, res.Type, res.Attrs))
	}
	return m.message(name, source, fields)
}

// param returns the field for the i-th parameter. Fields are numbered by
// position, unless the parameter name carries an index.
func (m *Mapper) param(param typegraph.Symbol, i int, typ ir.TypeExpr, attrs ir.Options) *ir.Field {
	name, number, ok := splitIndex(m.prov.Name(param))
	if !ok {
		m.warnf("parameter %s has a non-numeric index", m.prov.Name(param))
	}
	if number == 0 {
		number = int32(i + 1)
	}
	field := &ir.Field{Name: name, Number: number, Type: typ, Pos: m.at}
	if loc, ok := m.prov.Declaration(param); ok {
		field.Pos = loc
	}
	field.Options.Merge(&attrs)
	return field
}

func (m *Mapper) message(name string, source typegraph.Type, fields []*ir.Field) (*ir.Message, error) {
	msg := &ir.Message{Name: name, Source: source, Pos: m.at}
	unnamed := 0
	for _, f := range fields {
		if f.Name == "" {
			f.Name = fmt.Sprintf("a%d", unnamed)
			unnamed++
		}
		if err := msg.Body().Push(f); err != nil {
			return nil, fmt.Errorf("message %s: %w", name, err)
		}
	}
	m.log.WithField("type", name).Debug("synthesizing message")
	m.artificial = append(m.artificial, msg)
	return msg, nil
}
