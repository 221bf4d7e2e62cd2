package platform

// Rotation is the rotation of the display from its natural orientation.
type Rotation int

const (
	Rotation0 Rotation = iota
	Rotation90
	Rotation180
	Rotation270
)

// RotationFromDegrees maps 0/90/180/270 to a Rotation. Other values map to Rotation0.
func RotationFromDegrees(deg int) Rotation {
	switch ((deg % 360) + 360) % 360 {
	case 90:
		return Rotation90
	case 180:
		return Rotation180
	case 270:
		return Rotation270
	default:
		return Rotation0
	}
}

// Display exposes the current display rotation.
type Display interface {
	Rotation() Rotation
}

// FixedDisplay is a Display that never rotates.
type FixedDisplay Rotation

func (d FixedDisplay) Rotation() Rotation { return Rotation(d) }
