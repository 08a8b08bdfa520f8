package tenant

// PrefixKey creates a namespaced cache/queue key per business slug or id.
func PrefixKey(businessSlugOrID, key string) string {
	if businessSlugOrID == "" {
		return key
	}
	return businessSlugOrID + ":" + key
}
