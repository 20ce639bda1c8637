package procmgr

import "github.com/abossard/vjbus/pkg/envelope"

func commandWith(data map[string]interface{}) envelope.CommandPayload {
	return envelope.CommandPayload{Verb: "test", Data: data}
}
