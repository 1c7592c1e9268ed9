package http

import (
	"encoding/json"

	"github.com/vovakirdan/roomchat/internal/core"
	"github.com/vovakirdan/roomchat/internal/proto"
)

func badRequest(msg string) *proto.Error {
	return &proto.Error{Code: core.ErrCodeBadRequest, Msg: msg}
}

// inboundToCommand decodes one client frame. A non-nil *proto.Error is sent
// back to the client and the connection stays open.
func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error) {
	switch inbound.Type {
	case proto.InboundTypeLogin:
		var login proto.LoginData
		if err := decodeData(inbound.Data, &login); err != nil {
			return nil, badRequest("invalid login data")
		}
		return &core.Command{
			Kind:     core.CommandLogin,
			Nick:     login.Nick,
			Password: login.Password,
		}, nil
	case proto.InboundTypeSend:
		var send proto.SendMessageData
		if err := decodeData(inbound.Data, &send); err != nil {
			return nil, badRequest("invalid message data")
		}
		return &core.Command{
			Kind:    core.CommandSendMessage,
			Payload: send.Payload,
		}, nil
	case proto.InboundTypeTyping:
		var typing proto.TypingData
		if err := decodeData(inbound.Data, &typing); err != nil {
			return nil, badRequest("invalid typing data")
		}
		return &core.Command{
			Kind:   core.CommandTyping,
			Typing: typing.Status,
		}, nil
	case proto.InboundTypeLoadMore:
		var more proto.LoadMoreData
		if err := decodeData(inbound.Data, &more); err != nil {
			return nil, badRequest("invalid load-more data")
		}
		return &core.Command{
			Kind:   core.CommandLoadMore,
			Before: more.LastID,
		}, nil
	default:
		return nil, badRequest("unknown message type")
	}
}

// decodeData tolerates a missing data field.
func decodeData(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func toEventMessages(msgs []core.Message) []proto.EventMessage {
	out := make([]proto.EventMessage, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toEventMessage(msg))
	}
	return out
}

func toEventMessage(msg core.Message) proto.EventMessage {
	return proto.EventMessage{
		ID:      msg.ID,
		Author:  msg.From,
		Payload: msg.Payload,
		TimeMs:  msg.TimeMillis(),
	}
}

func eventOutbound(name string, data any) proto.Outbound {
	return proto.Outbound{Type: proto.OutboundTypeEvent, Event: name, Data: data}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventLoginRejected:
		rejection := proto.EventRejection{Reason: event.Reason}
		if event.Error != nil {
			rejection.Code = event.Error.Code
		}
		return eventOutbound(proto.EventLoginRejected, rejection)
	case core.EventSessionStarted:
		return eventOutbound(proto.EventSessionStarted, proto.EventSession{
			Room:    event.Room,
			Nick:    event.User,
			Members: event.Users,
		})
	case core.EventHistory:
		return eventOutbound(proto.EventPreviousMessage, proto.EventHistory{
			Room:     event.Room,
			Messages: toEventMessages(event.Messages),
		})
	case core.EventUserJoined:
		return eventOutbound(proto.EventMemberJoined, proto.EventMember{Room: event.Room, Nick: event.User})
	case core.EventUserLeft:
		return eventOutbound(proto.EventMemberLeft, proto.EventMember{Room: event.Room, Nick: event.User})
	case core.EventRoomMessage:
		return eventOutbound(proto.EventMessagePosted, toEventMessage(event.Message))
	case core.EventTyping:
		return eventOutbound(proto.EventTypingStatus, proto.EventTyping{Nick: event.User, Status: event.Typing})
	case core.EventOlderMessages:
		return eventOutbound(proto.EventOlderMessages, proto.EventOlderPage{
			Room:     event.Room,
			Messages: toEventMessages(event.Messages),
			HasMore:  event.HasMore,
		})
	case core.EventError:
		protoErr := &proto.Error{Code: "unknown", Msg: "unknown error"}
		if event.Error != nil {
			protoErr = &proto.Error{Code: event.Error.Code, Msg: event.Error.Message}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Event: proto.EventOperationFailed,
			Error: protoErr,
		}
	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
