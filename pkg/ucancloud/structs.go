package ucancloud

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

const (
	successCode = "2000"
)

// Object is a JSON object as returned by the cloud API. Payloads are kept
// verbatim so that consumers see every field the server sends.
type Object = map[string]any

// DeviceList holds the raw entries of the device list call.
type DeviceList []Object

type Device struct {
	Id            string
	Serial        string
	InverterModel string
}

type Role string

const (
	RoleAdmin          Role = "ADMIN"
	RolePrimaryAgent   Role = "PRL_AGENT"
	RoleSecondaryAgent Role = "SEC_AGENT"
	RoleInstaller      Role = "INSTALLER"
	RoleOps            Role = "OPS"
	RoleMember         Role = "MEMBER"
)

var roleNames = map[Role]string{
	RoleAdmin:          "Administrator",
	RolePrimaryAgent:   "Primary agent",
	RoleSecondaryAgent: "Secondary agent",
	RoleInstaller:      "Installer",
	RoleOps:            "Operations",
	RoleMember:         "Member",
}

func (r Role) DisplayName() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return string(r)
}

type SignInResult struct {
	Token string
	Role  Role
}

type signInRequest struct {
	Sign     string `json:"sign"`
	Password string `json:"password"`
}

type deviceRequest struct {
	DeviceId string `json:"device_id"`
}

type alarmsRequest struct {
	DeviceId  string `json:"device_id"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
}

// envelope is the common response shape of every endpoint.
type envelope struct {
	ErrorCode json.RawMessage `json:"error_code"`
	Msg       string          `json:"msg"`
	Token     string          `json:"token"`
	Role      string          `json:"role"`
	List      json.RawMessage `json:"list"`
	Data      json.RawMessage `json:"data"`
}

// code normalizes error_code, which the server sends either as a number or
// as a string.
func (e envelope) code() string {
	raw := bytes.TrimSpace(e.ErrorCode)
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return string(raw)
}

func (e envelope) ok() bool {
	return e.code() == successCode
}

// serverFault reports a 5xxx error code. The API numbers its codes after
// HTTP status classes, so these are server-side and transient.
func (e envelope) serverFault() bool {
	n, err := strconv.Atoi(e.code())
	return err == nil && n >= 5000 && n < 6000
}

func (e envelope) message() string {
	if e.Msg == "" {
		return "unknown error"
	}
	return e.Msg
}

// Devices extracts the identifying fields of every list entry. Entries
// without a device id are skipped.
func (l DeviceList) Devices() []Device {
	devices := make([]Device, 0, len(l))
	for _, entry := range l {
		id := stringField(entry, "device_id")
		if id == "" {
			continue
		}
		devices = append(devices, Device{
			Id:            id,
			Serial:        stringField(entry, "device_sn"),
			InverterModel: stringField(entry, "inverter_model"),
		})
	}
	return devices
}

func stringField(o Object, key string) string {
	switch v := o[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}
