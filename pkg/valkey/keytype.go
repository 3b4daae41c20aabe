package valkey

// KeyType is a server-side key type as reported by TYPE and accepted by
// SCAN's TYPE filter.
type KeyType string

const (
	TypeHash      KeyType = "hash"
	TypeList      KeyType = "list"
	TypeSet       KeyType = "set"
	TypeSortedSet KeyType = "zset"
	TypeString    KeyType = "string"
	TypeBloom     KeyType = "bloomfltr"
)

// KeyTypes lists the supported types in display order.
var KeyTypes = []KeyType{TypeHash, TypeList, TypeSet, TypeSortedSet, TypeString, TypeBloom}

var displayNames = map[KeyType]string{
	TypeHash:      "Hash",
	TypeList:      "List",
	TypeSet:       "Set",
	TypeSortedSet: "Sorted Set",
	TypeString:    "String",
	TypeBloom:     "Bloomfilter",
}

// ParseKeyType maps a TYPE reply to a KeyType; ok is false for types
// outside the supported taxonomy.
func ParseKeyType(s string) (KeyType, bool) {
	kt := KeyType(s)
	_, ok := displayNames[kt]
	return kt, ok
}

// Display is the human-readable type name.
func (k KeyType) Display() string {
	if name, ok := displayNames[k]; ok {
		return name
	}
	return "Unknown"
}
