package query

// Project builds the "f" map returned for one search result item: the
// always-present title plus every requested extra field. A path that
// resolves to nothing is left out of the map entirely rather than
// represented as null — "unknown paths project as absent, not as an
// error" (spec §4.3.4).
func Project(payload []byte, ownerID, title string, extraFields []string) map[string]interface{} {
	f := map[string]interface{}{"title": title}
	for _, path := range extraFields {
		if path == "title" {
			continue
		}
		if path == AuthorField {
			f[path] = ownerID
			continue
		}
		v := fieldValue(payload, ownerID, path)
		if v.Exists() {
			f[path] = v.Value()
		}
	}
	return f
}
