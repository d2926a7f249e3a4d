package classifier

// Kind is the canonical classification of a chain message. The node reports
// dialect-specific type tags; everything downstream only sees a Kind.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindSendCoin
	KindDelegate
	KindRedelegate
	KindUndelegate
)

// String returns the canonical name of the kind.
func (k Kind) String() string {
	switch k {
	case KindSendCoin:
		return "send_coin"
	case KindDelegate:
		return "delegate"
	case KindRedelegate:
		return "redelegate"
	case KindUndelegate:
		return "undelegate"
	default:
		return "unknown"
	}
}

// IsDelegationChange reports whether the kind mutates a delegator's stake.
func (k Kind) IsDelegationChange() bool {
	return k == KindDelegate || k == KindRedelegate || k == KindUndelegate
}

// msgKinds maps the message-type tags of both supported SDK dialects
// (cosmos-sdk/... and the staking/... / bank/... variants) onto canonical
// kinds. This table is the single place dialects are distinguished.
var msgKinds = map[string]Kind{
	// cosmos-sdk dialect
	"cosmos-sdk/MsgSend":            KindSendCoin,
	"cosmos-sdk/MsgDelegate":        KindDelegate,
	"cosmos-sdk/MsgBeginRedelegate": KindRedelegate,
	"cosmos-sdk/MsgUndelegate":      KindUndelegate,

	// terra-style dialect
	"bank/MsgSend":               KindSendCoin,
	"staking/MsgDelegate":        KindDelegate,
	"staking/MsgBeginRedelegate": KindRedelegate,
	"staking/MsgUndelegate":      KindUndelegate,
}

// KindOf resolves a dialect-specific message-type tag to its canonical kind.
func KindOf(msgType string) Kind {
	if k, ok := msgKinds[msgType]; ok {
		return k
	}
	return KindUnknown
}
