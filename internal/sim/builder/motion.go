package builder

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"voxelbuild.ai/internal/sim/geom"
)

const robotLift = 3

func cellVec(c geom.Cell) mgl64.Vec3 {
	return mgl64.Vec3{float64(c.X), float64(c.Y), float64(c.Z)}
}

// updateRobot moves the robot a quarter of the way towards the point above
// the centroid of the active clear tasks.
func (b *Builder) updateRobot() {
	if len(b.activeClear) == 0 {
		b.hasRobot = false
		return
	}
	var sum mgl64.Vec3
	maxY := math.Inf(-1)
	for _, t := range b.activeClear {
		v := cellVec(t.Pos)
		sum = sum.Add(v)
		maxY = math.Max(maxY, v.Y())
	}
	avg := sum.Mul(1 / float64(len(b.activeClear)))
	goal := mgl64.Vec3{avg.X(), maxY + robotLift, avg.Z()}
	if !b.hasRobot {
		b.robot = goal
		b.hasRobot = true
		return
	}
	b.robot = b.robot.Add(goal.Sub(b.robot).Mul(0.25))
}

// RobotPos is the eased robot position; ok is false while no clear task is
// active.
func (b *Builder) RobotPos() (pos mgl64.Vec3, ok bool) {
	return b.robot, b.hasRobot
}

// ItemPos is where the item of a place task is drawn: on an arc from the
// builder towards the target cell, parameterised by progress.
func (b *Builder) ItemPos(t PlaceTask) mgl64.Vec3 {
	origin := cellVec(b.cfg.Origin)
	height := cellVec(t.Pos).Sub(origin)
	frac := 1.0
	if target := t.Target(b.cfg.Origin); target > 0 {
		frac = math.Min(1, float64(t.Progress)/float64(target))
	}
	lift := math.Sin(frac*math.Pi) * (height.Y() + 1)
	return origin.
		Add(height.Mul(frac)).
		Add(mgl64.Vec3{0.5, 1 + lift, 0.5})
}
