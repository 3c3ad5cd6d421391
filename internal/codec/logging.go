package codec

import "log/slog"

// LoggingTransform returns an untagged transform that logs the size of every
// value passing through it at debug level.
func LoggingTransform(logger *slog.Logger) Transform {
	return Transform{
		Encode: func(data []byte) ([]byte, error) {
			logger.Debug("encoding value", "bytes", len(data))
			return data, nil
		},
		Decode: func(data []byte) ([]byte, error) {
			logger.Debug("decoded value", "bytes", len(data))
			return data, nil
		},
	}
}
