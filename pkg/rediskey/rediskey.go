package rediskey

import "fmt"

// Sequence keys shared by every process incrementing the same counters.
const (
	SequencePrefix       = "seq"
	TenantSequencePrefix = "seq:tenant"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// BuildTenantSequenceKey returns "seq:tenant".
func BuildTenantSequenceKey() string {
	return TenantSequencePrefix
}

// BuildDailySequenceKey returns "seq:{prefix}:{scope}:{yymmdd}".
func BuildDailySequenceKey(prefix, scope, day string) string {
	return NamespaceKey(SequencePrefix, fmt.Sprintf("%s:%s:%s", prefix, scope, day))
}
