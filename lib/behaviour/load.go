package behaviour

import (
	"net"
	"os"
	"strings"

	"github.com/discv5-testground/mockpeer/lib/wire"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/p2p/enode"
	"github.com/ethereum/go-ethereum/p2p/enr"
	"github.com/go-i2p/logger"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

var log = logger.GetGoI2PLogger()

type fileScript struct {
	Sequential  []fileBehaviour  `yaml:"sequential"`
	Declarative *fileDeclarative `yaml:"declarative"`
}

type fileBehaviour struct {
	Expect  fileExpect   `yaml:"expect"`
	Actions []fileAction `yaml:"actions"`
}

type fileExpect struct {
	Kind    string `yaml:"kind"`
	Request string `yaml:"request"`
}

type fileDeclarative struct {
	WhoAreYou             []fileAction `yaml:"whoareyou"`
	Handshake             []fileAction `yaml:"handshake"`
	Message               []fileAction `yaml:"message"`
	MessageWithoutSession []fileAction `yaml:"message_without_session"`
}

type fileAction struct {
	Type   string       `yaml:"type"`
	Reason string       `yaml:"reason"`
	Custom []fileCustom `yaml:"custom"`
}

type fileCustom struct {
	Captured *int        `yaml:"captured"`
	Explicit string      `yaml:"explicit"`
	Message  fileMessage `yaml:"message"`
}

type fileMessage struct {
	Type      string   `yaml:"type"`
	ENRSeq    uint64   `yaml:"enr_seq"`
	IP        string   `yaml:"ip"`
	Port      uint16   `yaml:"port"`
	Distances []uint   `yaml:"distances"`
	Total     uint8    `yaml:"total"`
	Records   []string `yaml:"records"`
	Protocol  string   `yaml:"protocol"`
	Payload   string   `yaml:"payload"`
}

// Load reads a YAML script from path.
func Load(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.Wrapf(err, "failed to read script %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, oops.Wrapf(err, "script %s", path)
	}
	return s, nil
}

// Parse decodes a YAML script. Exactly one of "sequential" and "declarative"
// must be present.
func Parse(data []byte) (Script, error) {
	var f fileScript
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, oops.Wrapf(ErrInvalidScript, "%v", err)
	}
	switch {
	case f.Sequential != nil && f.Declarative != nil:
		return nil, oops.Wrapf(ErrInvalidScript, "both sequential and declarative given")
	case f.Declarative != nil:
		return f.Declarative.build()
	case f.Sequential != nil:
		behaviours := make([]Behaviour, 0, len(f.Sequential))
		for i, fb := range f.Sequential {
			b, err := fb.build()
			if err != nil {
				return nil, oops.Wrapf(err, "sequential entry %d", i)
			}
			behaviours = append(behaviours, b)
		}
		log.WithFields(logger.Fields{
			"at":      "behaviour.Parse",
			"entries": len(behaviours),
		}).Debug("sequential_script_loaded")
		return NewSequential(behaviours...), nil
	default:
		return nil, oops.Wrapf(ErrInvalidScript, "neither sequential nor declarative given")
	}
}

func (fb fileBehaviour) build() (Behaviour, error) {
	expect, err := fb.Expect.build()
	if err != nil {
		return Behaviour{}, err
	}
	actions, err := buildActions(fb.Actions)
	if err != nil {
		return Behaviour{}, err
	}
	return Behaviour{Expect: expect, Actions: actions}, nil
}

func (fe fileExpect) build() (Expect, error) {
	switch strings.ToLower(fe.Kind) {
	case "whoareyou":
		return ExpectWhoAreYou{}, nil
	case "message_without_session":
		return ExpectMessageWithoutSession{}, nil
	case "handshake":
		r, err := ParseRequest(fe.Request)
		if err != nil {
			return nil, err
		}
		return ExpectHandshake{Request: r}, nil
	case "message":
		r, err := ParseRequest(fe.Request)
		if err != nil {
			return nil, err
		}
		return ExpectMessage{Request: r}, nil
	default:
		return nil, oops.Wrapf(ErrInvalidScript, "unknown expect kind %q", fe.Kind)
	}
}

func (fd *fileDeclarative) build() (*Declarative, error) {
	var (
		d   Declarative
		err error
	)
	if d.WhoAreYou, err = buildActions(fd.WhoAreYou); err != nil {
		return nil, oops.Wrapf(err, "whoareyou")
	}
	if d.Handshake, err = buildActions(fd.Handshake); err != nil {
		return nil, oops.Wrapf(err, "handshake")
	}
	if d.Message, err = buildActions(fd.Message); err != nil {
		return nil, oops.Wrapf(err, "message")
	}
	if d.MessageWithoutSession, err = buildActions(fd.MessageWithoutSession); err != nil {
		return nil, oops.Wrapf(err, "message_without_session")
	}
	return &d, nil
}

func buildActions(fas []fileAction) ([]Action, error) {
	actions := make([]Action, 0, len(fas))
	for i, fa := range fas {
		a, err := fa.build()
		if err != nil {
			return nil, oops.Wrapf(err, "action %d", i)
		}
		actions = append(actions, a)
	}
	return actions, nil
}

func (fa fileAction) build() (Action, error) {
	switch strings.ToLower(fa.Type) {
	case "ignore":
		return Ignore{Reason: fa.Reason}, nil
	case "send_whoareyou":
		return SendWhoAreYou{}, nil
	case "establish_session":
		return EstablishSession{}, nil
	case "capture_request":
		return CaptureRequest{}, nil
	case "send_response":
		if len(fa.Custom) == 0 {
			return SendResponse{Response: DefaultResponse{}}, nil
		}
		custom := make(CustomResponses, 0, len(fa.Custom))
		for i, fc := range fa.Custom {
			c, err := fc.build()
			if err != nil {
				return nil, oops.Wrapf(err, "custom response %d", i)
			}
			custom = append(custom, c)
		}
		return SendResponse{Response: custom}, nil
	default:
		return nil, oops.Wrapf(ErrInvalidScript, "unknown action %q", fa.Type)
	}
}

func (fc fileCustom) build() (CustomResponse, error) {
	var id RequestID
	switch {
	case fc.Captured != nil && fc.Explicit != "":
		return CustomResponse{}, oops.Wrapf(ErrInvalidScript, "both captured and explicit request id given")
	case fc.Captured != nil:
		if *fc.Captured < 0 {
			return CustomResponse{}, oops.Wrapf(ErrInvalidScript, "negative captured index %d", *fc.Captured)
		}
		id = CapturedRequestID(*fc.Captured)
	case fc.Explicit != "":
		b, err := hexutil.Decode(fc.Explicit)
		if err != nil {
			return CustomResponse{}, oops.Wrapf(ErrInvalidScript, "explicit request id: %v", err)
		}
		if len(b) > wire.MaxRequestIDSize {
			return CustomResponse{}, oops.Wrapf(ErrInvalidScript, "explicit request id longer than %d bytes", wire.MaxRequestIDSize)
		}
		id = ExplicitRequestID(b)
	default:
		return CustomResponse{}, oops.Wrapf(ErrInvalidScript, "custom response without request id")
	}
	body, err := fc.Message.build()
	if err != nil {
		return CustomResponse{}, err
	}
	return CustomResponse{ID: id, Body: body}, nil
}

func (fm fileMessage) build() (wire.Message, error) {
	switch strings.ToLower(fm.Type) {
	case "ping":
		return &wire.Ping{ENRSeq: fm.ENRSeq}, nil
	case "pong":
		var ip net.IP
		if fm.IP != "" {
			if ip = net.ParseIP(fm.IP); ip == nil {
				return nil, oops.Wrapf(ErrInvalidScript, "invalid pong ip %q", fm.IP)
			}
			if v4 := ip.To4(); v4 != nil {
				ip = v4
			}
		}
		return &wire.Pong{ENRSeq: fm.ENRSeq, ToIP: ip, ToPort: fm.Port}, nil
	case "findnode":
		return &wire.FindNode{Distances: fm.Distances}, nil
	case "nodes":
		records, err := parseRecords(fm.Records)
		if err != nil {
			return nil, err
		}
		total := fm.Total
		if total == 0 {
			total = 1
		}
		return &wire.Nodes{RespCount: total, Nodes: records}, nil
	case "talkrequest", "talkreq":
		return &wire.TalkRequest{Protocol: fm.Protocol, Message: []byte(fm.Payload)}, nil
	case "talkresponse", "talkresp":
		return &wire.TalkResponse{Message: []byte(fm.Payload)}, nil
	default:
		return nil, oops.Wrapf(ErrInvalidScript, "unknown message type %q", fm.Type)
	}
}

func parseRecords(texts []string) ([]*enr.Record, error) {
	records := make([]*enr.Record, 0, len(texts))
	for _, text := range texts {
		n, err := enode.Parse(enode.ValidSchemes, text)
		if err != nil {
			return nil, oops.Wrapf(ErrInvalidScript, "invalid record %q: %v", text, err)
		}
		records = append(records, n.Record())
	}
	return records, nil
}
