// Package watcher 把一个目录树的 fsnotify 通知整理成单一、有序的事件流。
//
// 核心特点：
//   - 递归监控根目录，之后新建的目录会自动加入监控，其中已有的内容也会被报告
//   - 通过 Filter 在事件入队前排除路径，被排除的目录根本不会被监控
//   - 通过Debounce（事件合并）把编辑器、复制操作产生的一串原始事件合并成每个路径一个事件
//   - 记住已存在的文件，从而区分"新增"和"修改"
//   - 初始扫描结束后发出 Ready；Start 之前已存在的文件不产生事件
//   - 只报告曾经知道的文件的删除，同一窗口内创建又删除的临时文件不产生事件
//
// 注意：
//   - 不同平台对文件系统事件的支持存在差异；移入目录树视为新增，移出视为删除
//   - 目录被删除时只发出 RemovedDir，其下没有单独报告的文件直接被遗忘
//   - Stop() 会丢弃合并窗口中尚未处理的事件
//
// 推荐使用方式：
//  1. 配置 Config
//  2. 通过 NewWatcher 创建 Watcher
//  3. 在另一个goroutine中开始读取 Events
//  4. 调用 Start() 开始监控
//  5. 调用 Stop() 释放 fsnotify 句柄并关闭 Events
//
// 并发安全：
//   - Events 只由一个goroutine写入；同一个合并窗口内，路径按首次出现的顺序投递
//   - Stop 可以在 Start 扫描途中调用，Start 会尽快返回
package watcher
