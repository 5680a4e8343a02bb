package utils

import "context"

type contextKey string

func (c contextKey) String() string {
	return "login_consent/" + string(c)
}

const ctxKeyDevice = contextKey("deviceKey")
const ctxKeyUserAgent = contextKey("userAgentKey")

// DeviceIDToContext pushes a device id into the supplied context for easier propagation.
func DeviceIDToContext(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, ctxKeyDevice, deviceID)
}

// DeviceIDFromContext obtains a device id being propagated through the context.
func DeviceIDFromContext(ctx context.Context) string {
	deviceID, ok := ctx.Value(ctxKeyDevice).(string)
	if !ok {
		return ""
	}

	return deviceID
}

// UserAgentToContext pushes the caller's user agent into the supplied context.
func UserAgentToContext(ctx context.Context, userAgent string) context.Context {
	return context.WithValue(ctx, ctxKeyUserAgent, userAgent)
}

// UserAgentFromContext obtains the user agent being propagated through the context.
func UserAgentFromContext(ctx context.Context) string {
	userAgent, ok := ctx.Value(ctxKeyUserAgent).(string)
	if !ok {
		return ""
	}

	return userAgent
}
