package kurir

import (
	"github.com/ambiyansyah-risyal/kurir/internal/deepmerge"
)

// MergeConfig merges override onto base and returns a new config. Neither
// argument is modified and the merged header, auth and extra values share
// no map with either of them.
//
// Per-field rules:
//   - URL, Params and Data come from override only; a shared default never
//     leaks into a call. Params and Data are handed over as given, keeping
//     their dynamic type and any json.Marshaler they implement.
//   - Headers, Auth and Extra merge structurally: mappings combine key by
//     key with override winning per leaf, and an absent override yields a
//     deep copy of base.
//   - Every other field takes override when set, base otherwise. A zero
//     value counts as unset, so a call disables a default timeout with a
//     negative Timeout (see NoTimeout), not with zero.
func MergeConfig(base, override *RequestConfig) *RequestConfig {
	if base == nil {
		base = &RequestConfig{}
	}
	if override == nil {
		override = &RequestConfig{}
	}

	return &RequestConfig{
		URL:    override.URL,
		Params: override.Params,
		Data:   override.Data,

		Method:           pick(base.Method, override.Method),
		BaseURL:          pick(base.BaseURL, override.BaseURL),
		ParamsSerializer: pickFunc(base.ParamsSerializer, override.ParamsSerializer),
		ResponseType:     pick(base.ResponseType, override.ResponseType),
		Timeout:          pick(base.Timeout, override.Timeout),
		CancelToken:      pickFunc(base.CancelToken, override.CancelToken),
		ValidateStatus:   pickFunc(base.ValidateStatus, override.ValidateStatus),

		TransformRequest:  pickSlice(base.TransformRequest, override.TransformRequest),
		TransformResponse: pickSlice(base.TransformResponse, override.TransformResponse),

		OnUploadProgress:   pickFunc(base.OnUploadProgress, override.OnUploadProgress),
		OnDownloadProgress: pickFunc(base.OnDownloadProgress, override.OnDownloadProgress),

		WithCredentials: base.WithCredentials || override.WithCredentials,
		XSRFCookieName:  pick(base.XSRFCookieName, override.XSRFCookieName),
		XSRFHeaderName:  pick(base.XSRFHeaderName, override.XSRFHeaderName),

		Headers: mergeHeaders(base.Headers, override.Headers),
		Auth:    mergeAuth(base.Auth, override.Auth),
		Extra:   mergeExtra(base.Extra, override.Extra),
	}
}

func pick[T comparable](base, override T) T {
	var zero T
	if override != zero {
		return override
	}
	return base
}

func pickFunc[T any](base, override T) T {
	if !isNilValue(override) {
		return override
	}
	return base
}

// pickSlice lets a non-nil empty override clear the base list.
func pickSlice[T any](base, override []T) []T {
	src := base
	if override != nil {
		src = override
	}
	if src == nil {
		return nil
	}
	return append([]T(nil), src...)
}

func mergeHeaders(base, override Headers) Headers {
	if override == nil {
		if base == nil {
			return nil
		}
		return Headers(deepmerge.Merge(base))
	}
	return Headers(deepmerge.Merge(base, override))
}

func mergeAuth(base, override *BasicCredentials) *BasicCredentials {
	if override == nil {
		if base == nil {
			return nil
		}
		cp := *base
		return &cp
	}

	merged := BasicCredentials{}
	if base != nil {
		merged = *base
	}
	merged.Username = pick(merged.Username, override.Username)
	merged.Password = pick(merged.Password, override.Password)
	return &merged
}

// mergeExtra walks override keys first, then base keys not yet handled.
func mergeExtra(base, override map[string]any) map[string]any {
	if base == nil && override == nil {
		return nil
	}

	merged := make(map[string]any, len(base)+len(override))
	for key, val := range override {
		if val == nil {
			val = base[key]
		}
		merged[key] = deepmerge.Clone(val)
	}
	for key, val := range base {
		if _, done := merged[key]; done {
			continue
		}
		merged[key] = deepmerge.Clone(val)
	}
	return merged
}
