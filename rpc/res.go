// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2025 Daniel Schmidt

package rpc

import (
	ncx "github.com/netascode/go-ncx"
	gnmipb "github.com/openconfig/gnmi/proto/gnmi"
	"github.com/tidwall/gjson"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// GetRes is the result of a gNMI Get
type GetRes struct {
	Notifications []*gnmipb.Notification
	Timestamp     int64
	OK            bool
	Errors        []ncx.ErrorModel
}

// JSON renders the notifications as {"notification": [...]} in the
// protobuf JSON mapping; empty when there are none
func (r GetRes) JSON() string {
	if r.Notifications == nil {
		return ""
	}
	return marshalProto(&gnmipb.GetResponse{Notification: r.Notifications})
}

// GetValue queries the JSON rendering with a gjson path
//
// Example:
//
//	n := res.GetValue("notification.#")
func (r GetRes) GetValue(path string) gjson.Result {
	s := r.JSON()
	if s == "" {
		return gjson.Result{}
	}
	return gjson.Get(s, path)
}

// SetRes is the result of a gNMI Set
type SetRes struct {
	Response  *gnmipb.SetResponse
	Timestamp int64
	OK        bool
	Errors    []ncx.ErrorModel
}

// JSON renders the response in the protobuf JSON mapping
func (r SetRes) JSON() string {
	if r.Response == nil {
		return ""
	}
	return marshalProto(r.Response)
}

// GetValue queries the JSON rendering with a gjson path
func (r SetRes) GetValue(path string) gjson.Result {
	s := r.JSON()
	if s == "" {
		return gjson.Result{}
	}
	return gjson.Get(s, path)
}

// CapabilitiesRes is the result of a gNMI Capabilities request
type CapabilitiesRes struct {
	Version      string
	Capabilities []string
	Models       []*gnmipb.ModelData
	OK           bool
	Errors       []ncx.ErrorModel
}

func marshalProto(m proto.Message) string {
	data, err := protojson.MarshalOptions{UseProtoNames: true}.Marshal(m)
	if err != nil {
		return ""
	}
	return string(data)
}
