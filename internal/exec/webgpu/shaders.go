//go:build windows && xfer_float32

package webgpu

// WGSL compute shaders for the array kernels.
// Using string constants instead of embed for simplicity.

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

// maxWorkgroupsPerDim is the WebGPU limit on one dispatch dimension.
const maxWorkgroupsPerDim = 65535

// Every shader walks the logical index k = i*cols + j and maps it to a
// physical offset with the array's storage order.
const indexPrelude = `
fn physical(i: u32, j: u32, rows: u32, cols: u32, col_major: u32) -> u32 {
    if (col_major != 0u) {
        return j * rows + i;
    }
    return i * cols + j;
}

fn linear(gid: vec3<u32>, groups: vec3<u32>) -> u32 {
    return gid.x + gid.y * groups.x * 256u;
}
`

// initShader writes a(i, j) = value + i - j.
const initShader = indexPrelude + `
@group(0) @binding(0) var<storage, read_write> a: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
    col_major: u32,
    value: f32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let k = linear(gid, groups);
    if (k >= params.rows * params.cols) {
        return;
    }
    let i = k / params.cols;
    let j = k % params.cols;
    a[physical(i, j, params.rows, params.cols, params.col_major)] = params.value + f32(i) - f32(j);
}
`

// blurShader averages each interior cell of one checkerboard color with its
// four neighbours in place. Neighbours always have the other color, so a
// dispatch never reads a cell it writes.
const blurShader = indexPrelude + `
@group(0) @binding(0) var<storage, read_write> a: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
    col_major: u32,
    parity: u32,
}
@group(0) @binding(1) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let k = linear(gid, groups);
    if (k >= params.rows * params.cols) {
        return;
    }
    let i = k / params.cols;
    let j = k % params.cols;
    if (i == 0u || j == 0u || i + 1u >= params.rows || j + 1u >= params.cols) {
        return;
    }
    if ((i + j) % 2u != params.parity) {
        return;
    }
    let r = params.rows;
    let c = params.cols;
    let m = params.col_major;
    let sum = a[physical(i - 1u, j, r, c, m)] + a[physical(i, j, r, c, m)] + a[physical(i + 1u, j, r, c, m)]
        + a[physical(i, j - 1u, r, c, m)] + a[physical(i, j + 1u, r, c, m)];
    a[physical(i, j, r, c, m)] = sum / 5.0;
}
`

// transposeShader copies src into dst by logical index; the two orders may differ.
const transposeShader = indexPrelude + `
@group(0) @binding(0) var<storage, read_write> dst: array<f32>;
@group(0) @binding(1) var<storage, read> src: array<f32>;

struct Params {
    rows: u32,
    cols: u32,
    dst_col_major: u32,
    src_col_major: u32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let k = linear(gid, groups);
    if (k >= params.rows * params.cols) {
        return;
    }
    let i = k / params.cols;
    let j = k % params.cols;
    dst[physical(i, j, params.rows, params.cols, params.dst_col_major)] =
        src[physical(i, j, params.rows, params.cols, params.src_col_major)];
}
`

// checkShader counts elements farther than tolerance from value + i - j.
const checkShader = indexPrelude + `
@group(0) @binding(0) var<storage, read> a: array<f32>;
@group(0) @binding(1) var<storage, read_write> bad: atomic<u32>;

struct Params {
    rows: u32,
    cols: u32,
    col_major: u32,
    value: f32,
    tolerance: f32,
}
@group(0) @binding(2) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) gid: vec3<u32>, @builtin(num_workgroups) groups: vec3<u32>) {
    let k = linear(gid, groups);
    if (k >= params.rows * params.cols) {
        return;
    }
    let i = k / params.cols;
    let j = k % params.cols;
    let want = params.value + f32(i) - f32(j);
    let got = a[physical(i, j, params.rows, params.cols, params.col_major)];
    if (!(abs(got - want) < params.tolerance)) {
        atomicAdd(&bad, 1u);
    }
}
`
