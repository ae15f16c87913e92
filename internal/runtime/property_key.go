package runtime

// PropertyKeyKind discriminates PropertyKey variants. Strings are the only
// supported kind today; Object's accessors treat any other kind as a fatal
// contract violation rather than a recoverable error.
type PropertyKeyKind uint8

const (
	KeyInvalid PropertyKeyKind = iota
	KeyString
)

// PropertyKey addresses a slot in an Object's property storage.
type PropertyKey struct {
	kind PropertyKeyKind
	name string
}

func StringKey(name string) PropertyKey {
	return PropertyKey{kind: KeyString, name: name}
}

func (k PropertyKey) Kind() PropertyKeyKind { return k.kind }
func (k PropertyKey) IsString() bool        { return k.kind == KeyString }

// Name returns the string form of a string-kind key.
func (k PropertyKey) Name() string {
	if k.kind != KeyString {
		panic("runtime: Name on non-string property key")
	}
	return k.name
}
