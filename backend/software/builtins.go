package software

import (
	"math"
)

// builtins are Go ports of the entry points in the kernels package. Each
// body mirrors its WGSL source work-item for work-item.
var builtins = map[string]func(*group){
	"identity":           identity,
	"vecadd":             vecAdd,
	"nbody_sim":          nbodySim,
	"kfft":               dft,
	"gaussian_transform": gaussianTransform,
	"mmmKernel":          func(g *group) { matMul(g, int(g.u32(4))/4) },
	"mmmKernel_local":    func(g *group) { matMul(g, g.count[0]*g.size[0]) },
}

func identity(g *group) {
	src, dst := g.mem(0), g.mem(1)
	n := min(src.words(), dst.words())
	g.each(func(gid, _ [3]int) {
		if i := gid[0]; i < n {
			dst.setU32(i, src.u32(i))
		}
	})
}

func vecAdd(g *group) {
	a, b, c := g.mem(0), g.mem(1), g.mem(2)
	count := int(g.u32(3))
	g.each(func(gid, _ [3]int) {
		if i := gid[0]; i < count {
			c.setF32(i, a.f32(i)+b.f32(i))
		}
	})
}

func nbodySim(g *group) {
	pos, vel := g.mem(0), g.mem(1)
	n := int(g.u32(2))
	dt, eps := g.f32(3), g.f32(4)
	newPos, newVel := g.mem(5), g.mem(6)

	g.each(func(gid, _ [3]int) {
		i := gid[0]
		if i >= n {
			return
		}
		p := pos.vec4(i)
		var acc [3]float32
		for j := range n {
			q := pos.vec4(j)
			r := [3]float32{q[0] - p[0], q[1] - p[1], q[2] - p[2]}
			distSqr := r[0]*r[0] + r[1]*r[1] + r[2]*r[2] + eps
			inv := float32(1 / math.Sqrt(float64(distSqr)))
			s := q[3] * inv * inv * inv
			acc[0] += s * r[0]
			acc[1] += s * r[1]
			acc[2] += s * r[2]
		}
		v := vel.vec4(i)
		var np, nv [4]float32
		for c := range 3 {
			np[c] = p[c] + v[c]*dt + acc[c]*0.5*dt*dt
			nv[c] = v[c] + acc[c]*dt
		}
		np[3], nv[3] = p[3], v[3]
		newPos.setVec4(i, np)
		newVel.setVec4(i, nv)
	})
}

// dft transforms each block of size[0] complex samples in place.
func dft(g *group) {
	re, im := g.mem(0), g.mem(1)
	n := g.size[0]
	length := re.words()
	base := g.id[0] * n

	blockRe := make([]float32, n)
	blockIm := make([]float32, n)
	for t := range n {
		if i := base + t; i < length {
			blockRe[t], blockIm[t] = re.f32(i), im.f32(i)
		}
	}

	outRe := make([]float32, n)
	outIm := make([]float32, n)
	for k := range n {
		var sumRe, sumIm float32
		for t := range n {
			angle := -6.28318530718 * float64((k*t)%n) / float64(n)
			c, s := float32(math.Cos(angle)), float32(math.Sin(angle))
			sumRe += blockRe[t]*c - blockIm[t]*s
			sumIm += blockRe[t]*s + blockIm[t]*c
		}
		outRe[k], outIm[k] = sumRe, sumIm
	}

	for k := range n {
		if i := base + k; i < length {
			re.setF32(i, outRe[k])
			im.setF32(i, outIm[k])
		}
	}
}

func hash(seed uint32) uint32 {
	x := seed
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

func uniform01(seed uint32) float32 {
	return (float32(hash(seed)>>8) + 1) / 16777217
}

// noisy adds n to the RGB channels of an RGBA8 pixel, keeping alpha.
func noisy(pixel uint32, n float32) uint32 {
	out := pixel & 0xff000000
	for c := range uint32(3) {
		shift := c * 8
		v := float32((pixel>>shift)&0xff) + n
		out |= uint32(min(max(v, 0), 255)) << shift
	}
	return out
}

func gaussianTransform(g *group) {
	in, out := g.mem(0), g.mem(1)
	factor := float32(g.i32(2))
	width := int(g.u32(3))
	length := in.words()

	g.each(func(gid, _ [3]int) {
		x, y := gid[0]*2, gid[1]
		if x >= width {
			return
		}
		idx := y*width + x
		if idx >= length {
			return
		}
		u1 := uniform01(uint32(idx)*2 + 1)
		u2 := uniform01(uint32(idx)*2 + 2)
		r := math.Sqrt(-2 * math.Log(float64(u1)))
		theta := 6.28318530718 * float64(u2)

		out.setU32(idx, noisy(in.u32(idx), factor*float32(r*math.Cos(theta))))
		if x+1 < width {
			out.setU32(idx+1, noisy(in.u32(idx+1), factor*float32(r*math.Sin(theta))))
		}
	})
}

// matMul computes C = A * B where every work-item produces a 4x4 block of C.
// strideB is the row length of B and C in vec4s.
func matMul(g *group, strideB int) {
	a, b, c := g.mem(0), g.mem(1), g.mem(2)
	widthA := int(g.u32(3))
	strideA := widthA / 4

	g.each(func(gid, _ [3]int) {
		var sum [4][4]float32
		for i := 0; i < widthA; i += 4 {
			var rows [4][4]float32
			for r := range 4 {
				rows[r] = a.vec4(i/4 + (4*gid[1]+r)*strideA)
			}
			var cols [4][4]float32
			for r := range 4 {
				cols[r] = b.vec4(gid[0] + (i+r)*strideB)
			}
			for r := range 4 {
				for e := range 4 {
					sum[r][e] += rows[r][0]*cols[0][e] + rows[r][1]*cols[1][e] + rows[r][2]*cols[2][e] + rows[r][3]*cols[3][e]
				}
			}
		}
		for r := range 4 {
			c.setVec4(gid[0]+(4*gid[1]+r)*strideB, sum[r])
		}
	})
}
