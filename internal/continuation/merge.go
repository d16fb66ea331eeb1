package continuation

// protectedKeys are never inherited from a thread's initial context,
// regardless of whether the current request supplies them. Model choice
// and sampling behavior must always reflect the current request.
var protectedKeys = map[string]struct{}{
	KeyModel:        {},
	KeyTemperature:  {},
	KeyThinkingMode: {},
}

// mergeInitialContext copies into args every initial-context parameter
// the request did not supply, skipping protected keys. Explicit request
// values always win. Returns the keys that were inherited.
func mergeInitialContext(args map[string]any, initial map[string]any) []string {
	var merged []string
	for key, value := range initial {
		if _, protected := protectedKeys[key]; protected {
			continue
		}
		if _, present := args[key]; present {
			continue
		}
		args[key] = value
		merged = append(merged, key)
	}
	return merged
}
