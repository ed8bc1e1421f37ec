package camera

import (
	"encoding/binary"

	"github.com/alexrobin/osh-video/internal/domain"
)

// DefVideoFrame is the semantic definition of the frame array.
const DefVideoFrame = "http://sensorml.com/ont/swe/property/VideoFrame"

// NewFrameSchema describes height rows of width RGB pixels.
func NewFrameSchema(width, height int) (*domain.RecordSchema, error) {
	pixel := domain.Group("pixel", []*domain.Component{
		domain.Scalar("red", domain.TypeByte),
		domain.Scalar("green", domain.TypeByte),
		domain.Scalar("blue", domain.TypeByte),
	})
	row := domain.Array("row", width, pixel)
	return domain.NewRecordSchema(domain.Array("videoFrame", height, row, domain.WithDefinition(DefVideoFrame)))
}

// FrameEncoding is the raw big-endian RGB layout frames are published in.
func FrameEncoding() *domain.BinaryEncoding {
	return &domain.BinaryEncoding{
		ByteOrder:    binary.BigEndian,
		ByteEncoding: domain.ByteEncodingRaw,
		Members: []domain.BinaryMember{
			{Ref: "row/pixel/red", Type: domain.TypeByte, ByteWidth: 1},
			{Ref: "row/pixel/green", Type: domain.TypeByte, ByteWidth: 1},
			{Ref: "row/pixel/blue", Type: domain.TypeByte, ByteWidth: 1},
		},
	}
}

// frameSize reads the frame dimensions back from a schema built by NewFrameSchema.
func frameSize(s *domain.RecordSchema) (width, height int) {
	root := s.Root()
	return root.Children()[0].Count(), root.Count()
}
