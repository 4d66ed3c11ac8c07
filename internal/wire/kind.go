package wire

import "strings"

// Kind is the closed classification set for envelope text.
type Kind int

const (
	KindUnknown Kind = iota
	KindRegister
	KindAccept
	KindConnected
	KindUnregister
	KindIdle
	KindConvert
	KindStop
	KindSegmented
	KindInterface
)

// mnemonic markers as they appear in envelope text.
const (
	MnemonicRegister   = "Register"
	MnemonicAccept     = "Accept"
	MnemonicConnected  = "Connected"
	MnemonicUnregister = "Unregister"
	MnemonicIdle       = "Idle"
	MnemonicConvert    = "Convert"
	MnemonicStop       = "Stop"
	MnemonicSegmented  = "Segmented"
	MnemonicInterface  = "Interface"
)

// classifyOrder is the recognition grammar. Probe order is fixed:
// "Unregister" contains "Register" as a substring, so an Unregister
// envelope classifies as Register. Both answer with Accept, and the
// register side effects only fire when the envelope advertises an
// interface address, so the overlap is benign.
var classifyOrder = []Kind{
	KindRegister,
	KindAccept,
	KindConnected,
	KindUnregister,
	KindIdle,
	KindConvert,
	KindStop,
}

// Classify maps envelope text to its Kind by substring containment.
// It is total: text matching no marker yields KindUnknown.
func Classify(text string) Kind {
	for _, k := range classifyOrder {
		if strings.Contains(text, k.Mnemonic()) {
			return k
		}
	}
	return KindUnknown
}

// KindFromMnemonic resolves an exact mnemonic token, as opposed to the
// containment grammar used by Classify.
func KindFromMnemonic(token string) Kind {
	switch token {
	case MnemonicRegister:
		return KindRegister
	case MnemonicAccept:
		return KindAccept
	case MnemonicConnected:
		return KindConnected
	case MnemonicUnregister:
		return KindUnregister
	case MnemonicIdle:
		return KindIdle
	case MnemonicConvert:
		return KindConvert
	case MnemonicStop:
		return KindStop
	case MnemonicSegmented:
		return KindSegmented
	case MnemonicInterface:
		return KindInterface
	default:
		return KindUnknown
	}
}

// Mnemonic returns the marker embedded in envelope text for this kind.
func (k Kind) Mnemonic() string {
	switch k {
	case KindRegister:
		return MnemonicRegister
	case KindAccept:
		return MnemonicAccept
	case KindConnected:
		return MnemonicConnected
	case KindUnregister:
		return MnemonicUnregister
	case KindIdle:
		return MnemonicIdle
	case KindConvert:
		return MnemonicConvert
	case KindStop:
		return MnemonicStop
	case KindSegmented:
		return MnemonicSegmented
	case KindInterface:
		return MnemonicInterface
	default:
		return "Unknown"
	}
}

func (k Kind) String() string {
	return k.Mnemonic()
}
